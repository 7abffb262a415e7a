package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/leads"
)

func TestSchemaStatusDefaultMatchesEnum(t *testing.T) {
	require.Contains(t, schemaSQL, "DEFAULT '"+string(leads.StatusNew)+"'")

	// No lead status may appear in the schema in any other casing, or rows
	// created through the default would be invisible to status filters.
	lower := strings.ToLower(schemaSQL)
	for _, s := range leads.AllStatuses() {
		token := "'" + strings.ToLower(string(s)) + "'"
		if strings.Contains(lower, token) {
			assert.Contains(t, schemaSQL, "'"+string(s)+"'")
		}
	}
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	assert.Contains(t, names, "employees")
	assert.Contains(t, names, "departments")
	assert.Contains(t, names, "test-connection")
}

func TestRootCmd_RequiresOrganizationAndIntegration(t *testing.T) {
	t.Parallel()

	for _, sub := range []string{"employees", "departments", "test-connection"} {
		t.Run(sub, func(t *testing.T) {
			t.Parallel()

			root := newRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs([]string{sub, "--org", "org-1"})

			err := root.Execute()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), `"integration"`), err.Error())
		})
	}
}

func TestWriteJSON_Indents(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, syncOutput{Command: "dirsync employees", Success: true, Errors: []string{}}))

	out := buf.String()
	assert.Contains(t, out, "\n  \"command\": \"dirsync employees\"")
	assert.Contains(t, out, `"errors": []`)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"migrate", "segment", "layers", "events", "routes", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "trailnet", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestSegmentCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range segmentCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"add", "update", "delete", "list", "show"} {
		assert.True(t, names[name], "expected segment subcommand %q not found", name)
	}
}

func TestSegmentAddCommand_GeometryFlags(t *testing.T) {
	require.NotNil(t, segmentAddCmd.Flags().Lookup("wkt"))
	require.NotNil(t, segmentAddCmd.Flags().Lookup("geojson"))
	require.NotNil(t, segmentAddCmd.Flags().Lookup("name"))
	require.NotNil(t, segmentUpdateCmd.Flags().Lookup("wkt"))
}

func TestLayersCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range layersCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"load", "fetch", "status"} {
		assert.True(t, names[name], "expected layers subcommand %q not found", name)
	}
}

func TestEventsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range eventsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"add", "list", "export"} {
		assert.True(t, names[name], "expected events subcommand %q not found", name)
	}

	flag := eventsExportCmd.Flags().Lookup("out")
	require.NotNil(t, flag)
	assert.Equal(t, "events.xlsx", flag.DefValue)
}

func TestRoutesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range routesCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "add", "publish"} {
		assert.True(t, names[name], "expected routes subcommand %q not found", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildRootCmd_Defaults(t *testing.T) {
	cmd := buildRootCmd()

	flag := cmd.PersistentFlags().Lookup("config")
	assert.NotNil(t, flag)
	assert.Equal(t, "./scripts.json", flag.DefValue)

	flag = cmd.PersistentFlags().Lookup("dashboard-addr")
	assert.NotNil(t, flag)
	assert.Equal(t, ":8080", flag.DefValue)

	flag = cmd.PersistentFlags().Lookup("metrics-port")
	assert.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestBuildRootCmd_Use(t *testing.T) {
	cmd := buildRootCmd()

	assert.Equal(t, "bansurid", cmd.Use)
}

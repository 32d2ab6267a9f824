package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"expenseflow/internal/auth"
	"expenseflow/internal/models"
	"expenseflow/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	stdout string
	err    error
}

func runWith(t *testing.T, input string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(input), &stdout, &stderr)
	return result{stdout: stdout.String(), err: err}
}

func lookup(t *testing.T, dbPath, email string) *models.User {
	t.Helper()
	db, err := storage.NewDB(dbPath)
	require.NoError(t, err)
	defer db.Close()
	user, err := db.GetUserByEmail(context.Background(), email)
	require.NoError(t, err)
	return user
}

func TestRun_CreatesNormalizedUser(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")

	res := runWith(t, "", "-email", " Test@Example.com ", "-name", "Tester", "-password", "secret", "-db", dbPath)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "User test@example.com created successfully")

	user := lookup(t, dbPath, "test@example.com")
	assert.Equal(t, "Tester", user.DisplayName)
	assert.NotEqual(t, "secret", user.PasswordHash)
	assert.True(t, auth.CheckPassword("secret", user.PasswordHash))
}

func TestRun_DisplayNameDefaultsToEmail(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")

	res := runWith(t, "", "-email", "plain@example.com", "-password", "secret", "-db", dbPath)
	require.NoError(t, res.err)
	assert.Equal(t, "plain@example.com", lookup(t, dbPath, "plain@example.com").DisplayName)
}

func TestRun_ExistingEmailIsRejected(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")
	args := []string{"-email", "dup@example.com", "-password", "secret", "-db", dbPath}

	require.NoError(t, runWith(t, "", args...).err)

	args[1] = "DUP@example.com"
	res := runWith(t, "", args...)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "user dup@example.com already exists")
}

func TestRun_PromptsForPassword(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")

	res := runWith(t, "prompted_secret\n", "-email", "prompt@example.com", "-db", dbPath)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Password: ")
	assert.Contains(t, res.stdout, "User prompt@example.com created successfully")
	assert.True(t, auth.CheckPassword("prompted_secret", lookup(t, dbPath, "prompt@example.com").PasswordHash))
}

func TestRun_DBPathFromEnvironment(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "from_env.db")
	t.Setenv("DB_PATH", dbPath)

	require.NoError(t, runWith(t, "", "-email", "env@example.com", "-password", "secret").err)
	assert.FileExists(t, dbPath)
}

func TestRun_Failures(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		input string
		args  []string
		want  string
		usage bool
	}{
		{name: "missing email", args: []string{"-password", "secret"}, want: "missing required flags: email", usage: true},
		{name: "empty prompted password", input: "\n", args: []string{"-email", "empty@example.com"}, want: "password cannot be empty"},
		{name: "blank password flag", args: []string{"-email", "blank@example.com", "-password", "   "}, want: "password cannot be empty"},
		{name: "directory as database", args: []string{"-email", "fail@example.com", "-password", "secret", "-db", dir}, want: "failed to open database"},
		{name: "unknown store", args: []string{"-email", "x@example.com", "-password", "secret", "-store", "postgres"}, want: `unknown store backend "postgres"`},
		{name: "undefined flag", args: []string{"-invalid"}, want: "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runWith(t, tt.input, tt.args...)
			require.Error(t, res.err)
			assert.Contains(t, res.err.Error(), tt.want)
			if tt.usage {
				assert.Contains(t, res.stdout, "Usage:")
			}
		})
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"anihub/internal/auth"
	"anihub/internal/upstream/upstreamtest"
	"anihub/pkg/models"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ANIHUB_CONFIG", "")
	t.Setenv("ANIHUB_DB_PATH", filepath.Join(t.TempDir(), "cli.db"))

	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func startFake(t *testing.T) (*upstreamtest.Fake, string) {
	t.Helper()
	fake := upstreamtest.New()
	base := fake.Start()
	t.Cleanup(fake.Close)
	return fake, base
}

func TestInfoPrintsJSON(t *testing.T) {
	_, base := startFake(t)

	out, err := run(t, "", "--upstream", base, "info", "naruto-677")
	require.NoError(t, err)

	var d models.AnimeDetail
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "naruto-677", d.ID)
	assert.Contains(t, out, "\n  \"title\"", "output is indented")
}

func TestSuggestJoinsArgs(t *testing.T) {
	fake, base := startFake(t)

	out, err := run(t, "", "--upstream", base, "suggest", "one", "piece")
	require.NoError(t, err)

	var items []models.Suggestion
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "one-piece-100", items[0].ID)
	assert.Equal(t, []string{"/search/suggest?keyword=one+piece"}, fake.Requests())
}

func TestCharactersPageFlag(t *testing.T) {
	fake, base := startFake(t)

	out, err := run(t, "", "--upstream", base, "characters", "naruto-677", "--page", "2")
	require.NoError(t, err)

	var p models.CharacterPage
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, 2, p.CurrentPage)
	assert.Equal(t, 1, fake.Count("/character/list/naruto-677?page=2"))
}

func TestRandomAndBundle(t *testing.T) {
	_, base := startFake(t)

	out, err := run(t, "", "--upstream", base, "random")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"naruto-677"}`, out)

	out, err = run(t, "", "--upstream", base, "bundle", "one-piece-100")
	require.NoError(t, err)
	assert.Contains(t, out, `"detail"`)
	assert.Contains(t, out, `"qtip"`)
}

func TestUpstreamErrorsAreDescribed(t *testing.T) {
	fake, base := startFake(t)
	fake.Fail("/info", http.StatusInternalServerError)

	out, err := run(t, "", "--upstream", base, "info", "123")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "upstream unavailable"), err.Error())
	assert.Empty(t, out)

	_, err = run(t, "", "--upstream", base, "qtip", "bleach-806")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "not found"), err.Error())
}

func TestHashPasswordFromStdin(t *testing.T) {
	out, err := run(t, "hunter22\n", "hash-password")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")))

	_, err = run(t, "", "hash-password")
	assert.EqualError(t, err, "password required")
}

func TestTokenIsAcceptedByTokenService(t *testing.T) {
	t.Setenv("ANIHUB_JWT_SECRET", "cli-secret")

	out, err := run(t, "", "token")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "expires "))

	claims, err := auth.TokenService{Secret: []byte("cli-secret"), Issuer: "anihub"}.Parse(lines[0])
	require.NoError(t, err)
	assert.Equal(t, auth.AdminSubject, claims.Subject)
}

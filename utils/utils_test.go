package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/stretchr/testify/require"
)

func TestReadTerms(t *testing.T) {
	terms, err := ReadTerms(strings.NewReader("eye  \r\nheart\n\n  optic nerve\t\n"))
	require.NoError(t, err)
	require.Equal(t, []types.Term{"eye", "heart", "optic nerve"}, terms)
}

func TestReadTermsFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "terms.txt")
	require.NoError(t, os.WriteFile(name, []byte("eye\nheart\n"), 0600))

	terms, err := ReadTermsFile(name)
	require.NoError(t, err)
	require.Equal(t, []types.Term{"eye", "heart"}, terms)

	_, err = ReadTermsFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	require.Equal(t, Fingerprint("key"), Fingerprint("key"))
	require.NotEqual(t, Fingerprint("key"), Fingerprint("other key"))
	require.NotContains(t, Fingerprint("secret-api-key"), "secret")
}

func TestRecoverWithError(t *testing.T) {
	run := func() (err error) {
		defer RecoverWithError(&err)
		panic("boom")
	}
	err := run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")

	ok := func() (err error) {
		defer RecoverWithError(&err)
		return errors.New("plain")
	}
	require.EqualError(t, ok(), "plain")
}

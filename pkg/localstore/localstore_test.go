package localstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, "/uploads/", zerolog.Nop())
	require.NoError(t, err)

	url, key, err := store.Upload(context.Background(), "asha@kongu.edu/../paperPresentation", "Certificate.PDF", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "asha@kongu.edu/paperPresentation/"))
	require.True(t, strings.HasSuffix(key, ".pdf"))
	require.Equal(t, "/uploads/"+key, url)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, store.Delete(context.Background(), key))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, store.Delete(context.Background(), key))
	require.Error(t, store.Delete(context.Background(), "/"))
}

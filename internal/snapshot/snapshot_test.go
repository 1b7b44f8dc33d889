package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timshannon/badgerhold/v4"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	options := badgerhold.DefaultOptions
	indexDir := dir + "/index"
	options.Dir = indexDir
	options.ValueDir = indexDir
	index, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	s, err := New(dir+"/snapshots", index)
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	body := []byte("<html><body>hello world</body></html>")

	record, err := s.Put(context.Background(), "fp0001", "https://example.com", "fp0001", "text/html", body)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), record.SizeBytes)

	got, gotBody, err := s.Get(context.Background(), "fp0001")
	require.NoError(t, err)
	assert.Equal(t, body, gotBody)
	assert.Equal(t, "https://example.com", got.URL)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
}

func TestPutRejectsPathTraversalID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Put(context.Background(), "../../etc/passwd", "https://example.com", "fp", "text/plain", []byte("x"))
	require.Error(t, err)
}

func TestDeleteRemovesIndexAndFile(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Put(context.Background(), "fp0002", "https://example.com/a", "fp0002", "text/plain", []byte("data"))
	require.NoError(t, err)

	require.NoError(t, s.Delete("fp0002"))

	_, _, err = s.Get(context.Background(), "fp0002")
	require.Error(t, err)
}

func TestListByURLReturnsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Put(context.Background(), "fp0003", "https://example.com/page", "fp0003", "text/plain", []byte("v1"))
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "fp0004", "https://example.com/page", "fp0004", "text/plain", []byte("v2"))
	require.NoError(t, err)

	records, err := s.ListByURL("https://example.com/page")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "fp0004", records[0].ID)
}

package carfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStride = 4

// writeCapture writes a capture file with a 4 byte preamble.
func writeCapture(t *testing.T, dir, name, preamble, body string) string {
	t.Helper()
	require.Len(t, preamble, testStride)
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(preamble+body), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestMergeStripsLaterPreambles(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, "wnds_03_001.dat", "P1aa", "AAAA")
	writeCapture(t, dir, "wnds_03_002.dat", "P2xx", "BBBB")

	merged, err := Merge(dir, "WNDS", testStride)
	require.NoError(t, err)
	require.Len(t, merged, 1)

	assert.Equal(t, filepath.Join(dir, "03"+MergedSuffix), merged[0])
	assert.Equal(t, "P1aaAAAABBBB", readFile(t, merged[0]))
}

func TestMergeOrdersBySequence(t *testing.T) {
	dir := t.TempDir()
	// Created out of order on purpose.
	writeCapture(t, dir, "wnds_03_002.dat", "QQQQ", "LATER")
	writeCapture(t, dir, "wnds_03_001.dat", "PPPP", "FIRST")

	merged, err := Merge(dir, "wnds", testStride)
	require.NoError(t, err)
	require.Len(t, merged, 1)

	assert.Equal(t, "PPPPFIRSTLATER", readFile(t, merged[0]))
}

func TestMergeGroupsByCar(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, "wnds_03_001.dat", "PPPP", "CAR3")
	writeCapture(t, dir, "wnds_07_001.dat", "PPPP", "CAR7")

	merged, err := Merge(dir, "WNDS", testStride)
	require.NoError(t, err)
	require.Len(t, merged, 2)

	assert.Equal(t, filepath.Join(dir, "03"+MergedSuffix), merged[0])
	assert.Equal(t, filepath.Join(dir, "07"+MergedSuffix), merged[1])
	assert.Equal(t, "PPPPCAR3", readFile(t, merged[0]))
	assert.Equal(t, "PPPPCAR7", readFile(t, merged[1]))
}

func TestMergeSelectsFamilyOnly(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, "wnds_03_001.dat", "PPPP", "KEEP")
	writeCapture(t, dir, "bids_03_001.dat", "PPPP", "OTHER")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wnds_03_001.txt"), []byte("notes"), 0o644))

	merged, err := Merge(dir, "WNDS", testStride)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "PPPPKEEP", readFile(t, merged[0]))
}

func TestMergeWalksSubdirectories(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, filepath.Join("day1", "wnds_03_001.dat"), "PPPP", "ONE")
	writeCapture(t, dir, filepath.Join("day2", "wnds_03_002.dat"), "QQQQ", "TWO")

	merged, err := Merge(dir, "WNDS", testStride)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "PPPPONETWO", readFile(t, merged[0]))
}

func TestMergeExtractsArchives(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, "wnds_03_001.dat", "PPPP", "PLAIN")

	zipPath := filepath.Join(dir, "wnds_03_002.dat.zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	w, err := zw.Create("wnds_03_002.dat")
	require.NoError(t, err)
	_, err = w.Write([]byte("QQQQZIPPED"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	merged, err := Merge(dir, "WNDS", testStride)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "PPPPPLAINZIPPED", readFile(t, merged[0]))

	// The archive member now exists beside its zip.
	assert.FileExists(t, filepath.Join(dir, "wnds_03_002.dat"))
}

func TestMergeRemovesStaleOutputs(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "99"+MergedSuffix)
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	writeCapture(t, dir, "wnds_03_001.dat", "PPPP", "NEW")

	merged, err := Merge(dir, "WNDS", testStride)
	require.NoError(t, err)
	require.Len(t, merged, 1)

	assert.NoFileExists(t, stale)
}

func TestMergeRerunIsStable(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, "wnds_03_001.dat", "PPPP", "BODY")

	first, err := Merge(dir, "WNDS", testStride)
	require.NoError(t, err)
	second, err := Merge(dir, "WNDS", testStride)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "PPPPBODY", readFile(t, second[0]))
}

func TestMergeMissingDir(t *testing.T) {
	_, err := Merge(filepath.Join(t.TempDir(), "absent"), "WNDS", testStride)
	assert.ErrorIs(t, err, ErrNoDir)
}

func TestMergeNoMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, "bids_03_001.dat", "PPPP", "OTHER")

	_, err := Merge(dir, "WNDS", testStride)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestMergeSkipsUnparsableNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wnds.dat"), []byte("shapeless"), 0o644))

	_, err := Merge(dir, "WNDS", testStride)
	assert.ErrorIs(t, err, ErrNoData)

	writeCapture(t, dir, "wnds_03_001.dat", "PPPP", "GOOD")
	merged, err := Merge(dir, "WNDS", testStride)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "PPPPGOOD", readFile(t, merged[0]))
}

package types

import "testing"

func TestFileMetadataFileKeyStable(t *testing.T) {
	m := FileMetadata{
		Owner:       []byte("Alice"),
		BucketID:    Hash{1},
		Location:    []byte("/videos/cat.mp4"),
		Size:        200,
		Fingerprint: Hash{2},
	}
	k1 := m.FileKey()
	k2 := m.FileKey()
	if k1 != k2 {
		t.Fatal("FileKey is not stable across calls")
	}

	other := m
	other.Location = []byte("/videos/dog.mp4")
	if other.FileKey() == k1 {
		t.Fatal("FileKey did not change when location changed")
	}
}

func TestFileMetadataValidate(t *testing.T) {
	m := FileMetadata{Owner: []byte("Alice"), Size: 0}
	if err := m.Validate(); err != ErrZeroSizeFile {
		t.Fatalf("expected ErrZeroSizeFile, got %v", err)
	}
	m.Size = 1
	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected error for valid metadata: %v", err)
	}
}

func TestChunksCount(t *testing.T) {
	cases := []struct {
		size uint64
		want uint64
	}{
		{1, 1},
		{FileChunkSize, 1},
		{FileChunkSize + 1, 2},
		{FileChunkSize * 3, 3},
	}
	for _, c := range cases {
		m := FileMetadata{Size: c.size}
		if got := m.ChunksCount(); got != c.want {
			t.Errorf("ChunksCount(%d): got %d, want %d", c.size, got, c.want)
		}
	}
}

func TestChunksToCheckFloor(t *testing.T) {
	m := FileMetadata{Size: 1}
	if got := m.ChunksToCheck(); got != MinChunksToCheck {
		t.Errorf("ChunksToCheck for a tiny file: got %d, want %d", got, MinChunksToCheck)
	}

	big := FileMetadata{Size: FileSizeToChallenges*3 + 1}
	if got := big.ChunksToCheck(); got != 4 {
		t.Errorf("ChunksToCheck for a large file: got %d, want 4", got)
	}
}

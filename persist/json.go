package persist

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// tempSuffix is appended to the destination filename while a save is in
// flight; LoadJSON refuses to load a file still wearing it, since a
// mid-write temp file is not guaranteed to be complete.
const tempSuffix = "_temp"

// ErrBadFilenameSuffix is returned by LoadJSON when asked to load a path
// ending in tempSuffix.
var ErrBadFilenameSuffix = errors.New("cannot load a file with the temp suffix")

// jsonFile is the on-disk envelope SaveJSON/LoadJSON wrap every object in:
// the metadata identifying what the file is, the checksum of the encoded
// object (catching partial writes and bit rot), and the object itself.
type jsonFile struct {
	Metadata Metadata
	Checksum string
	Data     json.RawMessage
}

// SaveJSON writes object to filename as JSON, tagged with meta and a
// checksum of the encoded data. The write is atomic: object is serialized
// and written to a temp file, which is only renamed over filename once the
// write has completed successfully, so a crash mid-write never corrupts an
// existing filename.
func SaveJSON(meta Metadata, object interface{}, filename string) error {
	data, err := json.Marshal(object)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	envelope := jsonFile{
		Metadata: meta,
		Checksum: fmt.Sprintf("%x", sum),
		Data:     data,
	}
	envelopeBytes, err := json.MarshalIndent(envelope, "", "\t")
	if err != nil {
		return err
	}

	tempFilename := filename + tempSuffix
	if err := os.WriteFile(tempFilename, envelopeBytes, 0600); err != nil {
		return err
	}
	return os.Rename(tempFilename, filename)
}

// LoadJSON reads the object previously written by SaveJSON back into
// object, after verifying meta matches and the checksum of the stored data
// is intact.
func LoadJSON(meta Metadata, object interface{}, filename string) error {
	if len(filename) >= len(tempSuffix) && filename[len(filename)-len(tempSuffix):] == tempSuffix {
		return ErrBadFilenameSuffix
	}

	raw, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	var envelope jsonFile
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	if envelope.Metadata.Header != meta.Header {
		return ErrBadHeader
	}
	if envelope.Metadata.Version != meta.Version {
		return ErrBadVersion
	}
	sum := sha256.Sum256(envelope.Data)
	if fmt.Sprintf("%x", sum) != envelope.Checksum {
		return errors.New("persisted file failed checksum verification")
	}
	return json.Unmarshal(envelope.Data, object)
}

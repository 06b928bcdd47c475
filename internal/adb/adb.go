// Package adb implements the Authenticated Data Store overlay: a second
// keyspace layered over internal/kvstore that associates each key with an
// MMR leaf position and assembles inclusion proofs from caller-supplied
// node digests. The server never hashes or verifies anything here; it
// only stores and retrieves bytes at positions the caller dictates.
package adb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/exowarexyz/simulator/internal/apierr"
	"github.com/exowarexyz/simulator/internal/entry"
	"github.com/exowarexyz/simulator/internal/kvstore"
	"github.com/exowarexyz/simulator/internal/mmr"
)

// Namespace prefixes distinguish ADB key-namespace entries from
// position-namespace (MMR node digest) entries sharing the same
// underlying byte-keyed store as the plain KV surface.
const (
	KeyNamespacePrefix byte = 0x00
	PosNamespacePrefix byte = 0x01
)

// DigestSize is the fixed size of every position-namespace entry.
const DigestSize = 32

// Store is the ADB overlay over a shared kvstore.Store.
type Store struct {
	kv *kvstore.Store
}

// New constructs an ADB overlay over kv.
func New(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

// keyNamespaceRecord is the value stored at a key-namespace entry: the
// caller's value plus the MMR leaf position it was assigned.
type keyNamespaceRecord struct {
	Value    []byte `json:"value"`
	Position uint64 `json:"position"`
}

func keyNamespaceKey(userKey []byte) []byte {
	k := make([]byte, 1+len(userKey))
	k[0] = KeyNamespacePrefix
	copy(k[1:], userKey)
	return k
}

func posNamespaceKey(position uint64) []byte {
	k := make([]byte, 1+8)
	k[0] = PosNamespacePrefix
	binary.BigEndian.PutUint64(k[1:], position)
	return k
}

// SetKey writes a key-namespace entry. ADB writes bypass the visibility
// gate and the write-rate limiter entirely: VisibleAt is always 0, so the
// entry is visible the instant it is written.
func (s *Store) SetKey(userKey []byte, position uint64, value []byte) error {
	record, err := json.Marshal(keyNamespaceRecord{Value: value, Position: position})
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, "encoding adb record failed", err)
	}
	e := entry.New(record)
	if err := s.kv.Put(keyNamespaceKey(userKey), entry.Encode(e)); err != nil {
		return apierr.Wrap(apierr.KindDB, "storing adb key failed", err)
	}
	return nil
}

// SetNodeDigest writes a position-namespace entry. digest must be exactly
// DigestSize bytes.
func (s *Store) SetNodeDigest(position uint64, digest []byte) error {
	if len(digest) != DigestSize {
		return apierr.New(apierr.KindInvalidBody, fmt.Sprintf("node digest must be %d bytes, got %d", DigestSize, len(digest)))
	}
	e := entry.New(digest)
	if err := s.kv.Put(posNamespaceKey(position), entry.Encode(e)); err != nil {
		return apierr.Wrap(apierr.KindDB, "storing node digest failed", err)
	}
	return nil
}

// GetResult is the payload returned by Get.
type GetResult struct {
	Value     []byte
	Position  uint64
	ProofData []byte
}

// Get looks up the key-namespace entry for userKey, then assembles an
// inclusion proof for its position against an MMR of size mmrSize by
// concatenating the digests stored at every node position
// internal/mmr.ProofPositions requires.
func (s *Store) Get(userKey []byte, mmrSize uint64) (GetResult, error) {
	raw, err := s.kv.Get(keyNamespaceKey(userKey))
	if err != nil {
		if err == kvstore.ErrNotFound {
			return GetResult{}, apierr.New(apierr.KindNotFound, "adb key not found")
		}
		return GetResult{}, apierr.Wrap(apierr.KindDB, "reading adb key failed", err)
	}
	e, err := entry.Decode(raw)
	if err != nil {
		return GetResult{}, apierr.Wrap(apierr.KindDecode, "stored adb entry is corrupt", err)
	}
	var record keyNamespaceRecord
	if err := json.Unmarshal(e.Value, &record); err != nil {
		return GetResult{}, apierr.Wrap(apierr.KindDecode, "stored adb record is corrupt", err)
	}

	positions := mmr.ProofPositions(mmrSize, record.Position)
	proof := make([]byte, 0, len(positions)*DigestSize)
	for _, pos := range positions {
		raw, err := s.kv.Get(posNamespaceKey(pos))
		if err != nil {
			if err == kvstore.ErrNotFound {
				return GetResult{}, apierr.New(apierr.KindMissingData, fmt.Sprintf("proof node %d not found in store", pos))
			}
			return GetResult{}, apierr.Wrap(apierr.KindDB, "reading proof node failed", err)
		}
		nodeEntry, err := entry.Decode(raw)
		if err != nil {
			return GetResult{}, apierr.Wrap(apierr.KindDecode, "stored proof node is corrupt", err)
		}
		if len(nodeEntry.Value) != DigestSize {
			return GetResult{}, apierr.New(apierr.KindInternal, fmt.Sprintf("proof node %d is not a %d-byte digest", pos, DigestSize))
		}
		proof = append(proof, nodeEntry.Value...)
	}

	return GetResult{Value: record.Value, Position: record.Position, ProofData: proof}, nil
}

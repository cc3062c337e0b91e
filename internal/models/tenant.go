package models

import (
	"fmt"
	"strconv"
	"strings"
)

// TenantKey is the isolation boundary for stored chunks
type TenantKey struct {
	UserID     string `json:"user_id"`
	DocumentID string `json:"document_id"`
}

func (t TenantKey) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return fmt.Errorf("%w: user_id is empty", ErrMissingTenant)
	}
	if strings.TrimSpace(t.DocumentID) == "" {
		return fmt.Errorf("%w: document_id is empty", ErrMissingTenant)
	}
	return nil
}

// Key is the combined user/document key used as a metadata filter
func (t TenantKey) Key() string {
	return t.UserID + TenantSeparator + t.DocumentID
}

// ChunkID returns the storage id of the chunk at position i
func (t TenantKey) ChunkID(i int) string {
	return t.Key() + TenantSeparator + strconv.Itoa(i)
}

// Collection is the per-user collection name
func (t TenantKey) Collection() string {
	return CollectionPrefix + t.UserID
}

func (t TenantKey) String() string {
	return t.Key()
}

// QAInteraction is one question/answer exchange of a session
type QAInteraction struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

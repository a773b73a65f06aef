package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

// envelopeSlot is the reserved slot name holding the ciphertext in the
// persisted envelope.
const envelopeSlot = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new data. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are old keys tried when decryption with the active key
	// fails, enabling zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts sessions with
// AES-GCM before they reach the backing store. The persisted envelope keeps
// the call and tenant IDs and the lane in the clear for monitoring; slots,
// transcripts and everything else is opaque.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{next: next, config: config}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, callID string, session *domain.CallSession) error {
	plain, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ciphertext, err := encrypt(plain, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("encrypt session: %w", err)
	}

	envelope := &domain.CallSession{
		ID:        session.ID,
		TenantID:  session.TenantID,
		Lane:      session.Lane,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		Slots: map[string]domain.SlotValue{
			envelopeSlot: {Value: base64.StdEncoding.EncodeToString(ciphertext)},
		},
	}
	return m.next.Save(ctx, callID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, callID string) (*domain.CallSession, error) {
	envelope, err := m.next.Load(ctx, callID)
	if err != nil {
		return nil, err
	}

	sealed, ok := envelope.Slots[envelopeSlot]
	if !ok {
		// Fail secure: with encryption configured, a plaintext record is
		// either corruption or a misconfigured writer.
		return nil, errors.New("session is missing its encrypted envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(sealed.Value)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("decrypt session: %w", err)
	}

	var session domain.CallSession
	if err := json.Unmarshal(plain, &session); err != nil {
		return nil, fmt.Errorf("unmarshal decrypted session: %w", err)
	}
	return &session, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, callID string) error {
	return m.next.Delete(ctx, callID)
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

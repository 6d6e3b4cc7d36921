package jwtkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultAuthKeysPath is the default directory where provisioned signing
// keys are mounted.
const DefaultAuthKeysPath = "/vault/auth"

// LoadSigner discovers the local signing key with the following priority:
//
//  1. Environment variables ACTIVE_KEY_ID + ACTIVE_PRIVATE_KEY_PEM
//  2. keys.json under keysPath (DefaultAuthKeysPath when empty)
//
// Returns an error when a key is provided but unparsable, or when neither
// source yields one. Locally minted tokens are an administrative feature;
// there is no auto-generation fallback outside tests.
func LoadSigner(keysPath string) (*RSASigner, error) {
	if signer, err := loadFromEnv(); err != nil {
		return nil, err
	} else if signer != nil {
		return signer, nil
	}
	if signer, err := loadFromFile(keysPath); err != nil {
		return nil, err
	} else if signer != nil {
		return signer, nil
	}
	return nil, fmt.Errorf("no signing key found in env or %s; set ACTIVE_KEY_ID/ACTIVE_PRIVATE_KEY_PEM or mount keys.json", keysPath)
}

func loadFromEnv() (*RSASigner, error) {
	kid := strings.TrimSpace(os.Getenv("ACTIVE_KEY_ID"))
	pemStr := strings.TrimSpace(os.Getenv("ACTIVE_PRIVATE_KEY_PEM"))
	if kid == "" && pemStr == "" {
		return nil, nil
	}
	if kid == "" {
		return nil, fmt.Errorf("ACTIVE_PRIVATE_KEY_PEM is set but ACTIVE_KEY_ID is missing")
	}
	if pemStr == "" {
		return nil, fmt.Errorf("ACTIVE_KEY_ID is set but ACTIVE_PRIVATE_KEY_PEM is missing")
	}
	signer, err := NewRSASignerFromPEM(kid, []byte(pemStr))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ACTIVE_PRIVATE_KEY_PEM: %w", err)
	}
	return signer, nil
}

func loadFromFile(keysPath string) (*RSASigner, error) {
	if keysPath == "" {
		keysPath = DefaultAuthKeysPath
	}
	dataPath := filepath.Join(keysPath, "keys.json")
	data, err := os.ReadFile(dataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read keys.json: %w", err)
	}
	var keyData struct {
		ActiveKeyID         string `json:"active_key_id"`
		ActivePrivateKeyPEM string `json:"active_private_key_pem"`
	}
	if err := json.Unmarshal(data, &keyData); err != nil {
		return nil, fmt.Errorf("failed to parse keys.json: %w", err)
	}
	if keyData.ActiveKeyID == "" || keyData.ActivePrivateKeyPEM == "" {
		return nil, fmt.Errorf("keys.json missing active_key_id or active_private_key_pem")
	}
	signer, err := NewRSASignerFromPEM(keyData.ActiveKeyID, []byte(keyData.ActivePrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return signer, nil
}

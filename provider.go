package protect

// RootKeyProvider is an interface for dynamic root-key retrieval. Implement
// it to back the development engine with an external key manager instead of
// inline keys.
type RootKeyProvider interface {
	// RootKey retrieves a 32-byte root key by its ID.
	RootKey(keyID string) ([]byte, error)

	// DefaultKeyID returns the key ID new encryptions use.
	DefaultKeyID() string

	// ActiveKeyIDs returns every key ID that may still appear in stored
	// ciphertext. During rotation this includes both old and new keys.
	ActiveKeyIDs() []string
}

// NewDevEngineWithProvider creates a development engine with keys fetched
// from the provider at initialization time and cached.
func NewDevEngineWithProvider(provider RootKeyProvider, opts ...DevOption) (*DevEngine, error) {
	activeIDs := provider.ActiveKeyIDs()
	if len(activeIDs) == 0 {
		return nil, ErrNoRootKeys
	}

	keyOpts := make([]DevOption, 0, len(activeIDs)+1+len(opts))
	for _, keyID := range activeIDs {
		key, err := provider.RootKey(keyID)
		if err != nil {
			return nil, err
		}
		keyOpts = append(keyOpts, WithRootKey(keyID, key))
	}
	keyOpts = append(keyOpts, WithDefaultRootKey(provider.DefaultKeyID()))
	keyOpts = append(keyOpts, opts...)

	return NewDevEngine(keyOpts...)
}

// StaticRootKeyProvider is a simple in-memory RootKeyProvider for tests and
// deployments without external key management.
type StaticRootKeyProvider struct {
	keys      map[string][]byte
	defaultID string
}

// NewStaticRootKeyProvider creates a provider over the given keys. defaultID
// must be one of the map's keys.
func NewStaticRootKeyProvider(keys map[string][]byte, defaultID string) *StaticRootKeyProvider {
	copied := make(map[string][]byte, len(keys))
	for id, key := range keys {
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)
		copied[id] = keyCopy
	}
	return &StaticRootKeyProvider{keys: copied, defaultID: defaultID}
}

func (p *StaticRootKeyProvider) RootKey(keyID string) ([]byte, error) {
	key, ok := p.keys[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

func (p *StaticRootKeyProvider) DefaultKeyID() string {
	return p.defaultID
}

func (p *StaticRootKeyProvider) ActiveKeyIDs() []string {
	return sortedMapKeys(p.keys)
}

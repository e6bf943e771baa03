// File: internal/infra/blob/fs_store.go
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/ports/adapter"
)

const metaSuffix = ".meta.json"

var _ adapter.BlobStore = (*FSStore)(nil)

// FSStore keeps blobs as files under root, each with an optional JSON metadata sidecar.
// The reference returned by Upload is the cleaned, slash-separated key.
type FSStore struct {
	root      string
	publicURL string
	signer    *Signer
}

func NewFSStore(root, publicURL string, signer *Signer) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob store: create root: %w", err)
	}
	return &FSStore{root: root, publicURL: strings.TrimRight(publicURL, "/"), signer: signer}, nil
}

// cleanKey rejects absolute keys and any key that escapes the root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: blob key %q", domain.ErrInvalidArgument, key)
	}
	k := path.Clean(key)
	if k == "." || k == ".." || strings.HasPrefix(k, "../") || strings.HasSuffix(k, metaSuffix) {
		return "", fmt.Errorf("%w: blob key %q", domain.ErrInvalidArgument, key)
	}
	return k, nil
}

func (s *FSStore) path(ref string) (string, error) {
	k, err := cleanKey(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

func (s *FSStore) Download(ctx context.Context, ref string) ([]byte, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %s", domain.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("blob download %s: %w", ref, err)
	}
	return data, nil
}

func (s *FSStore) Upload(ctx context.Context, key string, data []byte, meta map[string]string) (string, error) {
	ref, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	p := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("blob upload %s: %w", ref, err)
	}
	if err := writeAtomic(p, data); err != nil {
		return "", fmt.Errorf("blob upload %s: %w", ref, err)
	}
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return "", fmt.Errorf("blob upload %s: encode meta: %w", ref, err)
		}
		if err := writeAtomic(p+metaSuffix, b); err != nil {
			return "", fmt.Errorf("blob upload %s: write meta: %w", ref, err)
		}
	}
	return ref, nil
}

func writeAtomic(p string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Meta returns the metadata stored alongside ref, or nil when none was written.
func (s *FSStore) Meta(ctx context.Context, ref string) (map[string]string, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p + metaSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blob meta %s: %w", ref, err)
	}
	var meta map[string]string
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("blob meta %s: %w", ref, err)
	}
	return meta, nil
}

// List returns the references under prefix in lexical order.
func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, metaSuffix) || strings.HasPrefix(name, ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		ref := filepath.ToSlash(rel)
		if strings.HasPrefix(ref, prefix) {
			out = append(out, ref)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blob list %s: %w", prefix, err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *FSStore) SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	return signedURL(s.publicURL, s.signer, ref, ttl)
}

func signedURL(base string, signer *Signer, ref string, ttl time.Duration) (string, error) {
	if _, err := cleanKey(ref); err != nil {
		return "", err
	}
	token, err := signer.Mint(ref, ttl)
	if err != nil {
		return "", err
	}
	return base + "/blobs/" + (&url.URL{Path: ref}).EscapedPath() + "?token=" + url.QueryEscape(token), nil
}

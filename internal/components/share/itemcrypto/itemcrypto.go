// Package itemcrypto decrypts share record payloads into structured items.
package itemcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/sharelock/sharelock-go/internal/components/share/spec"
)

// EncA256GCM is the only content encryption algorithm the service issues.
const EncA256GCM = "A256GCM"

var (
	ErrUnsupportedEnc = errors.New("unsupported content encryption algorithm")
	ErrBadBlob        = errors.New("malformed encrypted blob")
	ErrDecryptFailed  = errors.New("payload decryption failed")
)

// Item is the decrypted shared item assembled from overview and details.
type Item struct {
	Title    string    `json:"title"`
	URLs     []string  `json:"urls,omitempty"`
	Notes    string    `json:"notes,omitempty"`
	Sections []Section `json:"sections,omitempty"`
}

// Section is a titled group of item fields.
type Section struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields,omitempty"`
}

// Field is a single labeled value within a section.
type Field struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// overviewDoc is the plaintext layout of the encrypted overview blob.
type overviewDoc struct {
	Title string   `mapstructure:"title"`
	URL   string   `mapstructure:"url"`
	URLs  []string `mapstructure:"urls"`
}

// detailsDoc is the plaintext layout of the encrypted details blob.
// Sections carry loosely typed field values; numbers and booleans are
// coerced to strings on decode.
type detailsDoc struct {
	Notes    string `mapstructure:"notesPlain"`
	Sections []struct {
		Title  string `mapstructure:"title"`
		Fields []struct {
			Name  string `mapstructure:"n"`
			Kind  string `mapstructure:"k"`
			Value string `mapstructure:"v"`
		} `mapstructure:"fields"`
	} `mapstructure:"sections"`
}

// Decryptor turns encrypted share record fields into an Item.
type Decryptor struct{}

// NewDecryptor returns a Decryptor.
func NewDecryptor() *Decryptor {
	return &Decryptor{}
}

// Decrypt opens both payload blobs with the symmetric key and assembles the
// structured item. Any parse or authentication failure is an error; no
// partial item is ever returned.
func (d *Decryptor) Decrypt(encOverview, encDetails spec.EncryptedBlob, key []byte) (*Item, error) {
	overview, err := Open(encOverview, key)
	if err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	details, err := Open(encDetails, key)
	if err != nil {
		return nil, fmt.Errorf("details: %w", err)
	}
	return decodeItem(overview, details)
}

// Open decrypts a single blob with AES-256-GCM and returns the plaintext.
func Open(blob spec.EncryptedBlob, key []byte) ([]byte, error) {
	if blob.Enc != EncA256GCM {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEnc, blob.Enc)
	}

	iv, err := base64.RawURLEncoding.DecodeString(blob.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: bad iv: %v", ErrBadBlob, err)
	}
	data, err := base64.RawURLEncoding.DecodeString(blob.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: bad data: %v", ErrBadBlob, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	if len(iv) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: iv length %d", ErrBadBlob, len(iv))
	}

	plain, err := gcm.Open(nil, iv, data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return plain, nil
}

// decodeItem maps the plaintext overview and details documents onto an Item.
func decodeItem(overview, details []byte) (*Item, error) {
	var rawOverview, rawDetails map[string]any
	if err := json.Unmarshal(overview, &rawOverview); err != nil {
		return nil, fmt.Errorf("invalid overview JSON: %w", err)
	}
	if err := json.Unmarshal(details, &rawDetails); err != nil {
		return nil, fmt.Errorf("invalid details JSON: %w", err)
	}

	var ov overviewDoc
	if err := weakDecode(rawOverview, &ov); err != nil {
		return nil, fmt.Errorf("invalid overview document: %w", err)
	}
	var det detailsDoc
	if err := weakDecode(rawDetails, &det); err != nil {
		return nil, fmt.Errorf("invalid details document: %w", err)
	}

	item := &Item{
		Title: ov.Title,
		Notes: det.Notes,
	}
	if ov.URL != "" {
		item.URLs = append(item.URLs, ov.URL)
	}
	item.URLs = append(item.URLs, ov.URLs...)

	for _, s := range det.Sections {
		section := Section{Title: s.Title}
		for _, f := range s.Fields {
			section.Fields = append(section.Fields, Field{
				Name:  f.Name,
				Kind:  f.Kind,
				Value: f.Value,
			})
		}
		item.Sections = append(item.Sections, section)
	}
	return item, nil
}

// weakDecode decodes a generic JSON map into a typed struct, coercing
// scalar field values to strings.
func weakDecode(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

package migrate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Migrator upgrades a decoded JSON document in place to the target version.
type Migrator interface {
	Migrate(doc map[string]any, target int) error
}

var ErrTooNew = errors.New("document version is newer than supported")

// Step upgrades a document from version N to N+1.
type Step func(doc map[string]any) error

// Chain applies registered steps one version at a time and optionally validates the
// result against a JSON schema.
type Chain struct {
	steps  map[int]Step
	schema *jsonschema.Schema
}

func NewChain() *Chain {
	return &Chain{steps: map[int]Step{}}
}

// Register installs the step that upgrades from version `from`.
func (c *Chain) Register(from int, s Step) *Chain {
	c.steps[from] = s
	return c
}

func (c *Chain) WithSchema(s *jsonschema.Schema) *Chain {
	c.schema = s
	return c
}

func (c *Chain) Migrate(doc map[string]any, target int) error {
	if doc == nil {
		return fmt.Errorf("migrate: nil document")
	}
	v, err := Version(doc)
	if err != nil {
		return err
	}
	if v > target {
		return fmt.Errorf("%w: version %d > %d", ErrTooNew, v, target)
	}
	for ; v < target; v++ {
		if s, ok := c.steps[v]; ok {
			if err := s(doc); err != nil {
				return fmt.Errorf("migrate v%d->v%d: %w", v, v+1, err)
			}
		}
		doc["version"] = v + 1
	}
	if c.schema == nil {
		return nil
	}
	norm, err := normalize(doc)
	if err != nil {
		return err
	}
	if err := c.schema.Validate(norm); err != nil {
		return fmt.Errorf("migrate: schema: %w", err)
	}
	return nil
}

// Version reads the document's version field; a missing field means version 1.
func Version(doc map[string]any) (int, error) {
	raw, ok := doc["version"]
	if !ok || raw == nil {
		return 1, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("migrate: bad version type %T", raw)
	}
}

// Decode parses a JSON object keeping numbers exact.
func Decode(b []byte) (map[string]any, error) {
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	var doc map[string]any
	if err := d.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("migrate: not a json object")
	}
	return doc, nil
}

func normalize(doc map[string]any) (any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	var out any
	if err := d.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

//go:embed schemas/claim.schema.json
var claimSchemaJSON string

func compileClaimSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource("claim.schema.json", strings.NewReader(claimSchemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile("claim.schema.json")
}

// NewClaimChain returns the migrator for claim records.
//
//	v1 -> v2: dimid/posA/posB/is3D renamed to dimension/min/max/is_3d.
//	v2 -> v3: non-uuid owners move to legacy_owner; flat guest permission flags
//	          become {member,guest} entries; non-uuid members are dropped.
func NewClaimChain() (*Chain, error) {
	s, err := compileClaimSchema()
	if err != nil {
		return nil, fmt.Errorf("claim schema: %w", err)
	}
	return NewChain().
		Register(1, renameV1Fields).
		Register(2, splitLegacyOwner).
		WithSchema(s), nil
}

// NewStoreChain returns the migrator for the store-wide version record. Claim data is
// upgraded record by record, so store steps only advance the version.
func NewStoreChain() *Chain {
	return NewChain()
}

func renameV1Fields(doc map[string]any) error {
	rename := func(from, to string) {
		if v, ok := doc[from]; ok {
			if _, exists := doc[to]; !exists {
				doc[to] = v
			}
			delete(doc, from)
		}
	}
	rename("dimid", "dimension")
	rename("posA", "min")
	rename("posB", "max")
	rename("is3D", "is_3d")
	for _, k := range []string{"members", "children"} {
		if _, ok := doc[k]; !ok {
			doc[k] = []any{}
		}
	}
	if _, ok := doc["parent_id"]; !ok {
		doc["parent_id"] = -1
	}
	return nil
}

func splitLegacyOwner(doc map[string]any) error {
	owner, _ := doc["owner"].(string)
	if owner != "" {
		if _, err := uuid.Parse(owner); err != nil {
			doc["legacy_owner"] = owner
			doc["owner"] = ""
		}
	} else {
		doc["owner"] = ""
	}

	if raw, ok := doc["members"].([]any); ok {
		kept := make([]any, 0, len(raw))
		for _, m := range raw {
			s, _ := m.(string)
			if _, err := uuid.Parse(s); err == nil {
				kept = append(kept, s)
			}
		}
		doc["members"] = kept
	}

	perms := map[string]any{}
	if raw, ok := doc["permissions"].(map[string]any); ok {
		for k, v := range raw {
			switch x := v.(type) {
			case bool:
				perms[k] = map[string]any{"member": true, "guest": x}
			case map[string]any:
				perms[k] = x
			}
		}
	}
	doc["permissions"] = perms
	return nil
}

package source

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/cuemby/groupsync/pkg/types"
	"gopkg.in/yaml.v3"
)

// FileSource is a LocalSource and ContactLookup read from a YAML export
// of the system of record:
//
//	contacts:
//	  - id: 1
//	    first_name: Ada
//	    do_not_email: false
//	    emails:
//	      - {id: 10, address: ada@x.com, location_type: Google, primary: true}
//	groups:
//	  - id: "2"
//	    title: Staff
//	    contacts: [1]
type FileSource struct {
	contacts map[int64]*types.Contact
	groups   map[string]*LocalGroup
}

// LocalGroup is a group of the system of record
type LocalGroup struct {
	ID       string  `yaml:"id"`
	Title    string  `yaml:"title"`
	Contacts []int64 `yaml:"contacts"`
}

type fileData struct {
	Contacts []*types.Contact `yaml:"contacts"`
	Groups   []*LocalGroup    `yaml:"groups"`
}

// LoadFile reads a FileSource from path
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read local source: %w", err)
	}
	return Parse(data)
}

// Parse builds a FileSource from YAML bytes
func Parse(data []byte) (*FileSource, error) {
	var fd fileData
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("failed to parse local source: %w", err)
	}

	fs := &FileSource{
		contacts: make(map[int64]*types.Contact, len(fd.Contacts)),
		groups:   make(map[string]*LocalGroup, len(fd.Groups)),
	}
	for i, c := range fd.Contacts {
		if c == nil {
			return nil, fmt.Errorf("contacts[%d] is empty", i)
		}
		if _, dup := fs.contacts[c.ID]; dup {
			return nil, fmt.Errorf("duplicate contact id %d", c.ID)
		}
		fs.contacts[c.ID] = c
	}
	for i, g := range fd.Groups {
		if g == nil {
			return nil, fmt.Errorf("groups[%d] is empty", i)
		}
		if _, dup := fs.groups[g.ID]; dup {
			return nil, fmt.Errorf("duplicate group id %s", g.ID)
		}
		fs.groups[g.ID] = g
	}
	return fs, nil
}

func (fs *FileSource) Memberships(ctx context.Context, localGroupID string) ([]types.MembershipRecord, error) {
	g, ok := fs.groups[localGroupID]
	if !ok {
		return nil, fmt.Errorf("local group not found: %s", localGroupID)
	}
	records := make([]types.MembershipRecord, 0, len(g.Contacts))
	for _, id := range g.Contacts {
		records = append(records, types.MembershipRecord{LocalGroupID: localGroupID, ContactID: id})
	}
	return records, nil
}

func (fs *FileSource) Count(ctx context.Context, localGroupID string) (int, error) {
	g, ok := fs.groups[localGroupID]
	if !ok {
		return 0, fmt.Errorf("local group not found: %s", localGroupID)
	}
	return len(g.Contacts), nil
}

func (fs *FileSource) Contact(ctx context.Context, id int64) (*types.Contact, error) {
	c, ok := fs.contacts[id]
	if !ok {
		return nil, fmt.Errorf("contact not found: %d", id)
	}
	return c, nil
}

// Groups returns the local groups ordered by id
func (fs *FileSource) Groups() []*LocalGroup {
	groups := make([]*LocalGroup, 0, len(fs.groups))
	for _, g := range fs.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}

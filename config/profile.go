package config

import (
	"fmt"
	"strings"
)

// Transformer is a function which takes configuration and applies some filter to it
type Transformer func(c *Config) error

// Profile contains the profile transformer the description of the profile
type Profile struct {
	// Description briefly describes the functionality of the profile
	Description string

	// Transform takes a configuration and applies the profile to it
	Transform Transformer
}

// Profiles is a map holding configuration transformers.
var Profiles = map[string]Profile{
	"test": {
		Description: `Keeps all repo data in memory and hashes every read.
Useful for tests and throwaway nodes.`,

		Transform: func(c *Config) error {
			c.Datastore.Spec = memSpec()
			c.Datastore.HashOnRead = True
			c.Datastore.GCPeriod = NewOptionalDuration(0)
			return nil
		},
	},
	"flatfs": {
		Description: `Stores blocks as files in a sharded directory tree and
everything else in leveldb. This is the default layout.

If you apply this profile after init, existing data must be
converted to the new layout.`,

		Transform: func(c *Config) error {
			c.Datastore.Spec = flatfsSpec()
			return nil
		},
	},
	"badgerds": {
		Description: `Replaces default datastore configuration with the badger
datastore. Faster writes, larger memory footprint.

If you apply this profile after init, existing data must be
converted to the new layout.`,

		Transform: func(c *Config) error {
			c.Datastore.Spec = badgerSpec()
			return nil
		},
	},
	"pebbleds": {
		Description: `Replaces default datastore configuration with the pebble
datastore.

If you apply this profile after init, existing data must be
converted to the new layout.`,

		Transform: func(c *Config) error {
			c.Datastore.Spec = pebbleSpec()
			return nil
		},
	},
	"levelds": {
		Description: `Keeps blocks and metadata in a single leveldb.`,

		Transform: func(c *Config) error {
			c.Datastore.Spec = levelSpec()
			return nil
		},
	},
	"default-datastore": {
		Description: `Restores default datastore configuration.`,

		Transform: func(c *Config) error {
			c.Datastore.Spec = DefaultDatastoreConfig().Spec
			return nil
		},
	},
	"raw-leaves": {
		Description: `Imports files with CIDv1 and raw leaves by default.`,

		Transform: func(c *Config) error {
			c.Import.CidVersion = *NewOptionalInteger(1)
			c.Import.UnixFSRawLeaves = True
			return nil
		},
	},
}

// ApplyProfiles applies the comma separated profile names to c in order.
func ApplyProfiles(c *Config, profiles string) error {
	for _, name := range appendSingle(nil, strings.Split(profiles, ",")) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p, ok := Profiles[name]
		if !ok {
			return fmt.Errorf("invalid configuration profile: %s", name)
		}
		if err := p.Transform(c); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
	}
	return nil
}

func appendSingle(a []string, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	m := map[string]bool{}
	for _, f := range a {
		if !m[f] {
			out = append(out, f)
		}
		m[f] = true
	}
	for _, f := range b {
		if !m[f] {
			out = append(out, f)
		}
		m[f] = true
	}
	return out
}

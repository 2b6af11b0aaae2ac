package config

// Init returns the configuration written into a fresh repo, with the comma
// separated profiles applied on top of the defaults.
func Init(profiles string) (*Config, error) {
	conf := &Config{
		Datastore: DefaultDatastoreConfig(),
	}
	if err := ApplyProfiles(conf, profiles); err != nil {
		return nil, err
	}
	return conf, nil
}

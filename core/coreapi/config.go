package coreapi

import (
	"github.com/ipfs/kubo-core/config"
	caopts "github.com/ipfs/kubo-core/core/coreiface/options"
)

// importConfig returns the Import section of the repo config.
func (api *CoreAPI) importConfig() (config.Import, error) {
	cfg, err := api.repo.Config()
	if err != nil {
		return config.Import{}, err
	}
	return cfg.Import, nil
}

// unixfsAddDefaults turns the values set in Import into add options.
// Callers prepend them so that explicit options still win.
func (api *CoreAPI) unixfsAddDefaults() ([]caopts.UnixfsAddOption, error) {
	imp, err := api.importConfig()
	if err != nil {
		return nil, err
	}

	var opts []caopts.UnixfsAddOption
	if !imp.CidVersion.IsDefault() {
		opts = append(opts, caopts.Unixfs.CidVersion(int(imp.CidVersion.WithDefault(config.DefaultCidVersion))))
	}
	if !imp.HashFunction.IsDefault() {
		opts = append(opts, caopts.Unixfs.Hash(imp.HashFunction.WithDefault(config.DefaultHashFunction)))
	}
	if imp.UnixFSRawLeaves != config.Default {
		opts = append(opts, caopts.Unixfs.RawLeaves(imp.UnixFSRawLeaves.WithDefault(config.DefaultUnixFSRawLeaves)))
	}
	if !imp.UnixFSChunker.IsDefault() {
		opts = append(opts, caopts.Unixfs.Chunker(imp.UnixFSChunker.WithDefault(config.DefaultUnixFSChunker)))
	}
	if !imp.UnixFSFileMaxLinks.IsDefault() {
		opts = append(opts, caopts.Unixfs.MaxFileLinks(int(imp.UnixFSFileMaxLinks.WithDefault(config.DefaultUnixFSFileMaxLinks))))
	}
	if imp.UnixFSTrickle.WithDefault(config.DefaultUnixFSTrickle) {
		opts = append(opts, caopts.Unixfs.Layout(caopts.TrickleLayout))
	}
	return opts, nil
}

// blockPutDefaults applies Import.HashFunction to block put. The CID
// version follows the codec, so Import.CidVersion is not used here.
func (api *CoreAPI) blockPutDefaults() ([]caopts.BlockPutOption, error) {
	imp, err := api.importConfig()
	if err != nil {
		return nil, err
	}

	var opts []caopts.BlockPutOption
	if !imp.HashFunction.IsDefault() {
		opts = append(opts, caopts.Block.Hash(imp.HashFunction.WithDefault(config.DefaultHashFunction)))
	}
	return opts, nil
}

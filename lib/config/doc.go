// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for canopyd and
// the canopy CLI.
//
// Configuration is loaded from a single file specified by either the
// CANOPY_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Without a file,
// commands run on [Default] plus their flags.
//
// The file may carry environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults to info-level
// logging; the other environments default to debug.
//
// Path fields are expanded after loading: ${HOME}, ${CANOPY_ROOT},
// ${XDG_RUNTIME_DIR} and ${VAR:-default} patterns.
//
// This package depends on no other canopy packages.
package config

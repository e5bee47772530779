// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for HomeAnywhere components.
//
// Configuration is loaded from a single YAML file specified by:
//   - HOMEANYWHERE_CONFIG environment variable, or
//   - an explicit path passed to LoadFile
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
package config

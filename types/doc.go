// Package types provides core types shared across the conductor module.
// This package has ZERO dependencies on other conductor packages to avoid
// circular imports. All other packages should import types from here.
package types

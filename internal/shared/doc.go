// Package shared provides utilities used across the aqicli codebase.
// It is a home for functionality that does not belong to any specific
// domain or architectural layer.
//
// # Structure
//
// The package is organized into the following components:
//
//   - testutil: test fixtures, log capture, and assertion helpers
//
// # Usage Guidelines
//
// This package should only contain:
//
//  1. Test utilities used by multiple packages
//  2. Generic helpers with no domain-specific logic
//
// It should NOT contain:
//
//  1. Business logic or domain-specific code
//  2. Circular dependencies with other internal packages
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - Hourly observation series and feature fixtures
//   - A buffered slog handler with log assertions
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    series := testutil.AQISeries("beijing", start, 48, 42)
//	    // exercise the code under test against the fixture
//	}
package shared

// Package config provides configuration loading, merging, and path
// management for Roslyn-Stone.
//
// # Configuration Loading
//
// Load implements a layered loading strategy, in priority order:
//
//  1. Global config (~/.config/roslyn-stone/config.json(c))
//  2. Project config (.roslyn-stone/config.json(c) under the given directory)
//  3. A .env file, loaded with joho/godotenv before step 4 so its values
//     participate in the environment-variable layer
//  4. Environment variables (ROSLYN_STONE_*), which always win
//
// # Supported Formats
//
// Both JSON and JSONC (JSON with // and /* */ comments stripped before
// unmarshaling) are accepted.
//
// # Environment Variable Overrides
//
//   - ROSLYN_STONE_EXECUTION_TIMEOUT_SECONDS
//   - ROSLYN_STONE_MAX_MEMORY_MB
//   - ROSLYN_STONE_RESTRICT_APIS
//   - ROSLYN_STONE_SESSION_TIMEOUT_MINUTES
//   - ROSLYN_STONE_PACKAGE_REPOSITORY_URL
//   - ROSLYN_STONE_MASK_SESSION_IDS
package config

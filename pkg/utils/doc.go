// Package utils provides small string helpers shared across services,
// most importantly the two slug derivation strategies (hyphenated and
// underscored) used when roles and permissions are created from titles.
package utils

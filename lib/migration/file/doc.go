// Package file loads and creates migration files.
//
// A migration file is a YAML document with an up and a down action. Source
// expressions are tagged with !regexp:
//
//	up:
//	  - cmd: renameKeys
//	    src: {key: !regexp '(app:post:\d+):lastModifiedTimestamp'}
//	    dst: {key: '$1:lastModified'}
//	down:
//	  - cmd: renameKeys
//	    src: {key: !regexp '(app:post:\d+):lastModified$'}
//	    dst: {key: '$1:lastModifiedTimestamp'}
//
// Create writes a file named YYYY-MM-DD-HHMMSS-<name>.yaml (UTC) holding example
// entries. Load decodes a file without validating it, the migration.Runner does that.
package file

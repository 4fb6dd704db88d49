package mcpserver

// IdentifierContract documents the package identifier notations accepted by
// resolve_package, for LLM consumers composing identifiers.
const IdentifierContract = `# sm Package Identifier Contract

resolve_package locates an installed package as seen from a calling file.
The search starts in the caller's directory and walks up to the filesystem
root. At every level two install areas are checked, nearest level first:

- ` + "`node_modules/<key>`" + ` (flat area), packages named by their canonical key
- ` + "`.deps/<host>~<org>~<name>~<major>/source/installed/<channel>`" + ` (deps area)

The first match wins.

## Notations

| Notation | Example | Areas |
|---|---|---|
| Bare name | ` + "`org.pinf.lib`" + `, ` + "`org.pinf.lib@0.1.4`" + ` | flat |
| Host-qualified | ` + "`github.com/pinf/org.pinf.lib`" + `, ` + "`github.com/pinf/org.pinf.lib/0.1.4`" + ` | flat, deps |
| Flattened | ` + "`github.com~pinf~org.pinf.lib`" + `, ` + "`github.com~pinf~org.pinf.lib/0.1.4`" + ` | flat, deps |
| Fully qualified install | ` + "`github.com~pinf~org.pinf.lib~0/source/installed/master`" + ` | deps |
| Explicit path | ` + "`.deps/github.com~pinf~org.pinf.lib~0/source/installed/master`" + ` | deps |

Host-qualified and flattened forms are equivalent: both share the canonical
key ` + "`github.com~pinf~org.pinf.lib`" + `. The first segment must be a host name
(it contains a dot).

## Version hints

- A hint that parses as a semantic version constraint (` + "`0.1.4`, `^0.1`, `>=1.0 <2`" + `)
  must be satisfied by the ` + "`version`" + ` field of the installed package.json
  (or package.yaml). Packages without a descriptor never satisfy a version hint.
- An exact version also restricts the ` + "`~<major>`" + ` install directory.
- Anything else (` + "`master`, `beta`" + `) is a channel name. In the deps area it must
  equal the channel directory; the flat area has no channels and accepts it.
- Without a hint the deps area prefers the highest major, then the highest
  descriptor version, then the channel name in lexical order.

## Module paths

An optional module is normalised inside the package:

- no ` + "`/`" + ` means it lives under ` + "`lib/`" + `
- no known extension (` + "`.js .json .mjs .cjs`" + `) means ` + "`.js`" + ` is appended

So ` + "`component`, `component.js`, `lib/component` and `lib/component.js`" + ` all
name ` + "`lib/component.js`" + `. Absolute paths and paths escaping the package are rejected.

## Result

` + "```" + `json
{
  "from": "/ws/.deps/github.com~pinf~sm.resolve~0/source/installed/master/test.js",
  "origin": "/ws/.deps/github.com~pinf~sm.resolve~0/source/installed/master",
  "found": {
    "package": "../../../../../node_modules/org.pinf.lib",
    "module": "lib/component.js"
  }
}
` + "```" + `

` + "`found.package`" + ` is relative to ` + "`origin`" + ` and always uses forward slashes.
` + "`found.module`" + ` is omitted when no module was requested.
`

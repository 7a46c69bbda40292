// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"sort"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	RegistryNotFoundId Id = iota + 1
	RegistryInvalidId
	UIDCollisionId
	CorpusUnreadableId
	DocumentParseErrorId
	ConfigLoadFailedId
	DependencyCycleId
	TerminologyInvalidId
	IntegrityFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	registryNotFoundIssue = &Issue{
		id: RegistryNotFoundId,
		mdMsg: `
# No UID registry found!

Validation needs a registry built from the corpus, but the registry file does
not exist yet.

## Things you can try:
- Build the registry first:
~~~
$ uidreg build
~~~

- Point at an existing registry:
~~~
$ uidreg validate --all --registry path/to/uid_registry.yaml
~~~`,
	}

	registryInvalidIssue = &Issue{
		id: RegistryInvalidId,
		mdMsg: `
# The UID registry could not be read!

The registry file exists but is not a valid registry.

## Expected layout:
~~~yaml
entries:
  physics:mechanics:free_fall@1.0.0:
    file: physics/mechanics/free_fall.yaml
    checksum: 9f86d081884c7d65...
    dependencies:
      - math:constants@1.0.0#g
~~~

## Things you can try:
- Rebuild it from the corpus:
~~~
$ uidreg build
~~~
- Make sure the file extension matches its format (.yaml, .toml or .json)`,
	}

	uidCollisionIssue = &Issue{
		id: UIDCollisionId,
		mdMsg: `
# Two files derive the same UID!

A UID is built from a file's directory, its name without extension, and its
declared version. Two files that only differ by extension (x.yaml and x.yml),
or files that declare the same version at the same location, collide.

The registry was **not** written.

## Things you can try:
- Remove or rename one of the listed files
- Give one of them a different metadata.version`,
	}

	corpusUnreadableIssue = &Issue{
		id: CorpusUnreadableId,
		mdMsg: `
# The corpus root cannot be scanned!

## Things you can try:
- Check the --root flag or the root setting in uidreg.cue
- Check directory permissions
- Run uidreg from the repository that contains the data directory`,
	}

	documentParseErrorIssue = &Issue{
		id: DocumentParseErrorId,
		mdMsg: `
# A corpus file is not valid YAML!

The registry is only written when every file parses, so a single broken file
blocks the build.

## Things you can try:
- Fix the syntax error at the reported line
- Exclude drafts with an exclude pattern:
~~~cue
exclude: ["**/drafts/**"]
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Check the CUE syntax of uidreg.cue
- Print the effective configuration:
~~~
$ uidreg config show
~~~
- Write a fresh configuration file with the defaults:
~~~
$ uidreg config init
~~~`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Some documents reference each other in a loop, so no dependency order exists.

## Things you can try:
- Inspect the listed UIDs and their $ref entries
- Move the shared values into a separate document both can reference`,
	}

	terminologyInvalidIssue = &Issue{
		id: TerminologyInvalidId,
		mdMsg: `
# The terminology dictionary is inconsistent!

Every term needs at least one domain, and every domain must be a top-level
directory of the corpus (or general).

## Expected layout:
~~~yaml
terms:
  velocity:
    domain: [physics, general]
~~~`,
	}

	integrityFailedIssue = &Issue{
		id: IntegrityFailedId,
		mdMsg: `
# Integrity check failed!

## What the findings mean:
- **MissingRegistryEntry**: the file is new, moved or re-versioned; rebuild the registry
- **InvalidReference**: the referenced UID does not exist
- **FragmentNotFound**: the UID exists but the field after # does not
- **ChecksumStale**: the file changed since the last build

## Things you can try:
~~~
$ uidreg build
$ uidreg validate --all
~~~`,
	}

	issues = map[Id]*Issue{
		registryNotFoundIssue.Id():   registryNotFoundIssue,
		registryInvalidIssue.Id():    registryInvalidIssue,
		uidCollisionIssue.Id():       uidCollisionIssue,
		corpusUnreadableIssue.Id():   corpusUnreadableIssue,
		documentParseErrorIssue.Id(): documentParseErrorIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		dependencyCycleIssue.Id():    dependencyCycleIssue,
		terminologyInvalidIssue.Id(): terminologyInvalidIssue,
		integrityFailedIssue.Id():    integrityFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	values := maps.Values(issues)
	sort.Slice(values, func(i, j int) bool { return values[i].id < values[j].id })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}

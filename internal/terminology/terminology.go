// SPDX-License-Identifier: MPL-2.0

// Package terminology checks that the terms a document names are registered
// in the terminology dictionary and allowed in the document's domain.
//
// A domain is the top-level directory a file lives in; files at the corpus
// root belong to GeneralDomain. Terms are the string values of "name" fields
// at any depth (which includes variables[*].name), trimmed and lower-cased.
package terminology

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/uidreg/uidreg/pkg/document"
	"github.com/uidreg/uidreg/pkg/uid"
)

// GeneralDomain is always a valid domain.
const GeneralDomain = "general"

const termField = "name"

var (
	// ErrInvalidDictionary is wrapped by every dictionary load or consistency
	// failure.
	ErrInvalidDictionary = errors.New("invalid terminology dictionary")
)

const (
	// FindingUnregistered: the term is not in the dictionary.
	FindingUnregistered FindingKind = "UnregisteredTerm"
	// FindingDomain: the term exists but not for this file's domain.
	FindingDomain FindingKind = "TermNotAllowedInDomain"
)

type (
	// FindingKind classifies a terminology finding.
	FindingKind string

	// Dictionary maps each term to the domains it may appear in.
	Dictionary struct {
		Terms map[string][]string
	}

	// Finding is one terminology problem in a file.
	Finding struct {
		Kind    FindingKind `json:"kind"`
		File    string      `json:"file"`
		Term    string      `json:"term"`
		Domain  string      `json:"domain"`
		Allowed []string    `json:"allowed,omitempty"`
		Message string      `json:"message"`
	}

	// Checker validates files below Root against a Dictionary.
	Checker struct {
		dict    *Dictionary
		root    string
		domains map[string]bool
	}

	dictionaryFile struct {
		Terms map[string]struct {
			Domain []string `yaml:"domain"`
		} `yaml:"terms"`
	}
)

// Load reads a dictionary of the form terms: {<term>: {domain: [...]}}.
func Load(file string) (*Dictionary, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDictionary, err)
	}
	var raw dictionaryFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDictionary, file, err)
	}
	d := &Dictionary{Terms: make(map[string][]string, len(raw.Terms))}
	for term, info := range raw.Terms {
		d.Terms[normalize(term)] = info.Domain
	}
	return d, nil
}

// Domains returns the names of the top-level directories of root plus
// GeneralDomain, sorted.
func Domains(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	set := map[string]bool{GeneralDomain: true}
	for _, e := range entries {
		if e.IsDir() {
			set[e.Name()] = true
		}
	}
	return slices.Sorted(maps.Keys(set)), nil
}

// NewChecker checks the dictionary for internal consistency (every term has a
// domain, every domain exists below root) and returns a Checker.
func NewChecker(dict *Dictionary, root string) (*Checker, error) {
	domains, err := Domains(root)
	if err != nil {
		return nil, err
	}
	c := &Checker{dict: dict, root: root, domains: make(map[string]bool, len(domains))}
	for _, d := range domains {
		c.domains[d] = true
	}

	var noDomain []string
	unknown := map[string]bool{}
	for term, ds := range dict.Terms {
		if len(ds) == 0 {
			noDomain = append(noDomain, term)
		}
		for _, d := range ds {
			if !c.domains[d] {
				unknown[d] = true
			}
		}
	}
	var errs []error
	if len(noDomain) > 0 {
		slices.Sort(noDomain)
		errs = append(errs, fmt.Errorf("terms without domains: %s", strings.Join(noDomain, ", ")))
	}
	if len(unknown) > 0 {
		errs = append(errs, fmt.Errorf("invalid domains in terminology: %s", strings.Join(slices.Sorted(maps.Keys(unknown)), ", ")))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDictionary, errors.Join(errs...))
	}
	return c, nil
}

// DomainOf returns the domain of a root-relative path.
func DomainOf(rel string) string {
	dir, _, found := strings.Cut(path.Clean(rel), "/")
	if !found {
		return GeneralDomain
	}
	return dir
}

// CheckFile returns the terminology findings for location, which is absolute
// or relative to the checker's root. Findings are sorted by term.
func (c *Checker) CheckFile(location string) ([]Finding, error) {
	rel, err := uid.Relative(c.root, location)
	if err != nil {
		return nil, err
	}
	doc, _, err := document.Load(c.root, rel)
	if err != nil {
		return nil, err
	}

	domain := DomainOf(rel)
	var findings []Finding
	for _, term := range Terms(doc.Root) {
		allowed, ok := c.dict.Terms[term]
		if !ok {
			findings = append(findings, Finding{
				Kind: FindingUnregistered, File: rel, Term: term, Domain: domain,
				Message: fmt.Sprintf("Term '%s' not registered", term),
			})
			continue
		}
		if !slices.Contains(allowed, domain) {
			findings = append(findings, Finding{
				Kind: FindingDomain, File: rel, Term: term, Domain: domain, Allowed: allowed,
				Message: fmt.Sprintf("Term '%s' not allowed in domain '%s' (allowed: %s)", term, domain, strings.Join(allowed, ", ")),
			})
		}
	}
	return findings, nil
}

// Terms returns the distinct terms named in n, sorted. Values that look like
// paths (containing "/" or ending in ".yaml") are not terms.
func Terms(n *document.Node) []string {
	set := map[string]bool{}
	collect(n, set)
	return slices.Sorted(maps.Keys(set))
}

func collect(n *document.Node, set map[string]bool) {
	if n == nil {
		return
	}
	switch n.Kind {
	case document.KindMapping:
		for i, k := range n.Keys {
			v := n.Fields[i]
			if k == termField && v.IsString() && !strings.Contains(v.Value, "/") && !strings.HasSuffix(v.Value, ".yaml") {
				if t := normalize(v.Value); t != "" {
					set[t] = true
				}
			}
			collect(v, set)
		}
	case document.KindSequence:
		for _, item := range n.Items {
			collect(item, set)
		}
	case document.KindScalar, document.KindNull:
	}
}

func normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

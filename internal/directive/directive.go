// Package directive extracts namespace, delegate package and template
// declarations from soy template files.
//
// Extraction is a single regular-expression pass over the file contents and
// does not parse the template language. It recognises the four declaration
// commands that the template index cares about:
//
//	{namespace foo.bar}
//	{delpackage pkg}
//	{template .name}
//	{deltemplate .name}
//
// The first namespace and the first delpackage win; template and deltemplate
// names accumulate in file order, duplicates included.
package directive

import (
	"regexp"

	"golang.org/x/text/cases"
)

const (
	// DefaultNamespace is recorded for files that declare no namespace. The
	// braces keep it out of the identifier alphabet accepted by the pattern.
	DefaultNamespace = "{default namespace}"

	// DefaultDelegate is recorded for files that declare no delpackage.
	DefaultDelegate = "{default delegate}"

	// MaxFileSize is the length at or above which files are never extracted.
	MaxFileSize = 1_000_000

	// Extension is the registered file extension, without the dot.
	Extension = "soy"
)

var commandPattern = regexp.MustCompile(`(?i)\{(delpackage|namespace|deltemplate|template)\s+\.?([a-z0-9_.]+)`)

// Directives is the result of scanning one file.
type Directives struct {
	Namespace    string   `json:"namespace" yaml:"namespace"`
	DelPackage   string   `json:"delpackage" yaml:"delpackage"`
	Templates    []string `json:"templates" yaml:"templates"`
	DelTemplates []string `json:"deltemplates" yaml:"deltemplates"`
}

// Empty returns the directives of a file with no declarations.
func Empty() Directives {
	return Directives{
		Namespace:  DefaultNamespace,
		DelPackage: DefaultDelegate,
	}
}

// Extract scans content and returns its declarations. Callers are expected
// to apply the MaxFileSize gate before calling.
func Extract(content string) Directives {
	d := Empty()
	var haveNamespace, haveDelPackage bool

	// Casers carry state and are not shared between goroutines.
	fold := cases.Fold()

	for _, m := range commandPattern.FindAllStringSubmatch(content, -1) {
		operand := m[2]
		switch fold.String(m[1]) {
		case "namespace":
			if !haveNamespace {
				d.Namespace = operand
				haveNamespace = true
			}
		case "delpackage":
			if !haveDelPackage {
				d.DelPackage = operand
				haveDelPackage = true
			}
		case "deltemplate":
			d.DelTemplates = append(d.DelTemplates, operand)
		default:
			d.Templates = append(d.Templates, operand)
		}
	}

	return d
}

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	indentPrefix    = "    "
	entryPrefix     = "├── "
	lastEntryPrefix = "└── "
	verticalLine    = "│   "
)

type slugNode struct {
	name     string
	children []*slugNode
}

func (n *slugNode) child(name string) *slugNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	c := &slugNode{name: name}
	n.children = append(n.children, c)
	return c
}

// buildSlugTree splits every slug on "/" and merges shared prefixes
func buildSlugTree(slugs []string) *slugNode {
	root := &slugNode{}
	for _, slug := range slugs {
		node := root
		for _, seg := range strings.Split(strings.Trim(slug, "/"), "/") {
			if seg == "" {
				continue
			}
			node = node.child(seg)
		}
	}
	return root
}

// WriteSlugTree renders slugs as a text tree rooted at the content root's base name.
// Segments with children are listed first, then alphabetically.
func WriteSlugTree(w io.Writer, contentRoot string, slugs []string) error {
	header := "Slug Tree for: " + contentRoot
	if _, err := fmt.Fprintf(w, "%s\n%s\n\n", header, strings.Repeat("=", len(header))); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s/\n", filepath.Base(contentRoot)); err != nil {
		return err
	}
	return writeSlugNodes(w, buildSlugTree(slugs).children, "")
}

func writeSlugNodes(w io.Writer, nodes []*slugNode, currentIndent string) error {
	slices.SortFunc(nodes, func(a, b *slugNode) int {
		aIsDir, bIsDir := len(a.children) > 0, len(b.children) > 0
		if aIsDir && !bIsDir {
			return -1
		}
		if !aIsDir && bIsDir {
			return 1
		}
		return strings.Compare(strings.ToLower(a.name), strings.ToLower(b.name))
	})

	for i, node := range nodes {
		isLast := i == len(nodes)-1
		connector := entryPrefix
		nextIndent := currentIndent + verticalLine
		if isLast {
			connector = lastEntryPrefix
			nextIndent = currentIndent + indentPrefix
		}

		name := node.name
		if len(node.children) > 0 {
			name += "/"
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", currentIndent, connector, name); err != nil {
			return err
		}
		if err := writeSlugNodes(w, node.children, nextIndent); err != nil {
			return err
		}
	}
	return nil
}

// GenerateSlugTree writes the slug tree of a collection to outputFilePath
func GenerateSlugTree(contentRoot string, slugs []string, outputFilePath string, log *logrus.Entry) error {
	log.Debugf("Writing slug tree for %d slugs to %s", len(slugs), outputFilePath)

	file, err := os.Create(outputFilePath)
	if err != nil {
		return fmt.Errorf("%w: failed to create tree file '%s': %w", ErrOutput, outputFilePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := WriteSlugTree(writer, contentRoot, slugs); err != nil {
		log.Errorf("Error writing slug tree '%s': %v", outputFilePath, err)
		return fmt.Errorf("%w: writing tree file '%s': %w", ErrOutput, outputFilePath, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: flush tree file '%s': %w", ErrOutput, outputFilePath, err)
	}
	return nil
}

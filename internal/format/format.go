// Package format renders ranked, assembled blocks into the CLI's
// output formats (§6): terminal, plain, markdown, json, xml, outline.
package format

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/probelabs/probe/internal/types"
)

// Format names accepted by --format.
const (
	Terminal = "terminal"
	Plain    = "plain"
	Markdown = "markdown"
	JSON     = "json"
	XML      = "xml"
	Outline  = "outline"
)

var knownFormats = map[string]bool{
	Terminal: true, Plain: true, Markdown: true, JSON: true, XML: true, Outline: true,
}

// Valid reports whether name is a recognized --format value.
func Valid(name string) bool { return knownFormats[name] }

// Render formats blocks for output. filesOnly restricts terminal/plain/
// markdown/outline to just the matching file paths, one per line,
// deduplicated; excludeFilenames omits the filename header line that
// otherwise precedes each block's code body.
func Render(blocks []*types.Block, name string, filesOnly, excludeFilenames bool) (string, error) {
	if filesOnly {
		return renderFilesOnly(blocks, name)
	}

	switch name {
	case Terminal:
		return renderTerminal(blocks, excludeFilenames), nil
	case Plain:
		return renderPlain(blocks, excludeFilenames), nil
	case Markdown:
		return renderMarkdown(blocks, excludeFilenames), nil
	case JSON:
		return renderJSON(blocks)
	case XML:
		return renderXML(blocks)
	case Outline:
		return renderOutline(blocks), nil
	default:
		return "", fmt.Errorf("unknown format %q", name)
	}
}

func renderFilesOnly(blocks []*types.Block, name string) (string, error) {
	seen := make(map[string]struct{})
	files := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if _, ok := seen[b.File]; ok {
			continue
		}
		seen[b.File] = struct{}{}
		files = append(files, b.File)
	}
	sort.Strings(files)

	switch name {
	case JSON:
		out, err := json.MarshalIndent(files, "", "  ")
		return string(out), err
	case XML:
		type fileList struct {
			XMLName xml.Name `xml:"files"`
			Files   []string `xml:"file"`
		}
		out, err := xml.MarshalIndent(fileList{Files: files}, "", "  ")
		return string(out), err
	default:
		return strings.Join(files, "\n"), nil
	}
}

func blockHeader(b *types.Block) string {
	if b.StartLine == b.EndLine {
		return fmt.Sprintf("%s:%d", b.File, b.StartLine)
	}
	return fmt.Sprintf("%s:%d-%d", b.File, b.StartLine, b.EndLine)
}

func renderTerminal(blocks []*types.Block, excludeFilenames bool) string {
	var sb strings.Builder
	header := color.New(color.FgCyan, color.Bold)
	meta := color.New(color.FgHiBlack)

	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		if !excludeFilenames {
			header.Fprintln(&sb, blockHeader(b))
			meta.Fprintf(&sb, "rank %d  score %.3f  %s\n", b.Rank, b.Score, b.NodeType)
		}
		sb.WriteString(b.Code)
		if !strings.HasSuffix(b.Code, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func renderPlain(blocks []*types.Block, excludeFilenames bool) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		if !excludeFilenames {
			sb.WriteString(blockHeader(b))
			sb.WriteString("\n")
		}
		sb.WriteString(b.Code)
		if !strings.HasSuffix(b.Code, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func renderMarkdown(blocks []*types.Block, excludeFilenames bool) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		if !excludeFilenames {
			fmt.Fprintf(&sb, "### %s\n\n", blockHeader(b))
		}
		fmt.Fprintf(&sb, "```\n%s\n```\n", strings.TrimRight(b.Code, "\n"))
	}
	return sb.String()
}

// jsonBlock is the wire shape of a Block in json/xml output: a
// deliberately narrowed view (no internal scoring fields like BM25Score
// or TFIDFScore) so the output format doesn't leak ranker internals.
type jsonBlock struct {
	File       string         `json:"file" xml:"file"`
	StartLine  int            `json:"start_line" xml:"start_line"`
	EndLine    int            `json:"end_line" xml:"end_line"`
	NodeType   string         `json:"node_type" xml:"node_type"`
	Code       string         `json:"code" xml:"code"`
	Score      float64        `json:"score" xml:"score"`
	Rank       int            `json:"rank" xml:"rank"`
	MatchedKeywords []string  `json:"matched_keywords,omitempty" xml:"matched_keywords>keyword,omitempty"`
	LspInfo    map[string]any `json:"lsp_info,omitempty" xml:"-"`
}

func toJSONBlocks(blocks []*types.Block) []jsonBlock {
	out := make([]jsonBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, jsonBlock{
			File: b.File, StartLine: b.StartLine, EndLine: b.EndLine,
			NodeType: string(b.NodeType), Code: b.Code, Score: b.Score, Rank: b.Rank,
			MatchedKeywords: b.MatchedKeywords, LspInfo: b.LspInfo,
		})
	}
	return out
}

func renderJSON(blocks []*types.Block) (string, error) {
	out, err := json.MarshalIndent(struct {
		Results []jsonBlock `json:"results"`
	}{Results: toJSONBlocks(blocks)}, "", "  ")
	return string(out), err
}

func renderXML(blocks []*types.Block) (string, error) {
	type results struct {
		XMLName xml.Name    `xml:"results"`
		Blocks  []jsonBlock `xml:"result"`
	}
	out, err := xml.MarshalIndent(results{Blocks: toJSONBlocks(blocks)}, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(out), nil
}

// renderOutline groups blocks by file and lists each block's symbol
// signature or line range, without full code bodies — a quick map of
// what matched, per §4.7's outline variant.
func renderOutline(blocks []*types.Block) string {
	byFile := make(map[string][]*types.Block)
	var order []string
	for _, b := range blocks {
		if _, ok := byFile[b.File]; !ok {
			order = append(order, b.File)
		}
		byFile[b.File] = append(byFile[b.File], b)
	}

	var sb strings.Builder
	for _, file := range order {
		sb.WriteString(file)
		sb.WriteString("\n")
		for _, b := range byFile[file] {
			label := b.SymbolSignature
			if label == "" {
				label = string(b.NodeType)
			}
			sb.WriteString("  " + strconv.Itoa(b.StartLine) + "-" + strconv.Itoa(b.EndLine) + "  " + label + "\n")
		}
	}
	return sb.String()
}

// Package report writes harvest output.
//
// TableWriter saves the harvested rows as a dated xlsx workbook, one sheet
// with a header row. The summary writers describe a run instead of its rows:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: a Markdown document with request counters and issues
//   - JSONWriter: structured output for tool integration
//
// Summary writers implement Writer and can be combined with MultiWriter.
package report

package mcpserver

// NoteSchemaURI is the resource URI of NoteSchema.
const NoteSchemaURI = "voxnote://note-schema"

// NoteSchema describes the note record and the Markdown form create_note
// accepts.
const NoteSchema = `# voxnote Note Schema

A note is one organized capture: a voice recording, an uploaded audio file,
or text typed in by hand.

## Fields

| Field            | Type       | Notes                                                   |
|------------------|------------|---------------------------------------------------------|
| id               | string     | Assigned on create, never reused                        |
| title            | string     | Display name                                            |
| content          | string     | Main text                                               |
| transcription    | string     | Raw words from the recording, if any                    |
| summary          | string     | One or two sentences                                    |
| category         | string     | Free text; empty is shown as "Uncategorized"            |
| tags             | []string   | Short lowercase labels                                  |
| actionItems      | []string   | Things to do                                            |
| keyPoints        | []string   | Insights worth keeping                                  |
| mainTopics       | []string   | Subjects covered                                        |
| questions        | []string   | Open questions                                          |
| isFavorite       | bool       | Starred by the user                                     |
| source           | string     | voice_recording or upload; empty when typed             |
| createdAt        | RFC 3339   | Set once                                                |
| updatedAt        | RFC 3339   | Set on every edit                                       |

## Markdown form

` + "```" + `markdown
---
title: Weekly sync          # optional when the body starts with "# Title"
category: Work              # optional
tags:                       # optional YAML list
  - meeting
favorite: false             # optional
---

# Weekly sync

Free text. Inline #tags are added to the tag list.

## Summary

One paragraph.

## Action Items

- [ ] Send the deck to Dana

## Key Points

- Budget approved

## Main Topics

- Roadmap

## Questions

- Who owns the launch?
` + "```" + `

## Rules

1. A note needs a title or some content.
2. Section headings are matched case-insensitively. Other sections are ignored.
3. id, createdAt and updatedAt in the frontmatter are ignored on create.
4. Lists accept "- ", "* " and "- [ ] " bullets at the start of a line. Lines
   indented by two spaces continue the item above.
5. Section headings start at column 0. Write "\#" to begin a line of text
   with a literal "#".
`

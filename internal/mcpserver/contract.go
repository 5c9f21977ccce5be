package mcpserver

// NoteFormatContract describes the note rules that LLM consumers should
// follow when creating or updating notes.
const NoteFormatContract = `# Note Format Contract

Notes are short plain-text posts arranged in threads.

## Content

1. **Length.** 1 to 1000 characters (Unicode code points). Empty content is rejected.
2. **Plain text.** No frontmatter, no Markdown rendering is guaranteed.

## Threads

- A note without ` + "`" + `parent_id` + "`" + ` starts a new thread.
- A reply sets ` + "`" + `parent_id` + "`" + ` to the note it answers. Its depth is the parent's depth plus one.
- Threads may nest at most 100 levels deep.
- Deleting a note deletes all of its replies, recursively.

## Mentions

- Reference another note with ` + "`" + `@` + "`" + ` followed by its 6-character id, e.g. ` + "`" + `@aB3xY9` + "`" + `.
- Ids are exactly 6 characters from A-Z, a-z, 0-9. ` + "`" + `@abc` + "`" + ` or ` + "`" + `@abc1234` + "`" + ` are plain text.
- Mentions of ids that do not exist are kept as text but not linked.
- Mentions may not form a cycle: if B mentions A, A cannot mention B (directly or through other notes).
  A note cannot mention itself.

## Editing

- ` + "`" + `update_note` + "`" + ` replaces the whole content and recomputes its mentions.
- Pass the note's ` + "`" + `checksum` + "`" + ` as ` + "`" + `if_match` + "`" + ` to avoid overwriting a concurrent edit.

## Example

` + "```" + `text
Following up on @aB3xY9: the migration ran fine, see @Qw12er for numbers.
` + "```" + `
`

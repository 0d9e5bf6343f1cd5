package service

import (
	"fmt"
	"strings"

	"github.com/momoso/api/internal/model"
)

// System instructions for each generation step. Output language follows
// the novel's title.

const worldviewInstruction = `You are a novelist who designs story worlds.
From the given genre and title, build an original and vivid world. Cover the era and core theme,
geography and notable places, history, society and culture, technology or supernatural rules,
key groups and races, the central conflicts, and any terms unique to this world.
Write in the same language as the title.`

const synopsisInstruction = `You are a novelist who plots stories.
From the given genre, title and world, write an original and detailed synopsis that stays
consistent with the world. Write in the same language as the title.`

const charactersInstruction = `You are a novelist who designs casts of characters.
From the given genre, title, world, synopsis and existing characters, create new characters that
do not duplicate the existing ones. Reply with a JSON array only, where every element has the
string fields "name", "role", "age", "sex", "job" and "profile". Write the values in the same
language as the title.`

const firstEpisodeInstruction = `You are a creative novelist.
From the given genre, title, world, synopsis and characters, write the first chapter of the novel
in 500 to 1000 characters, matching the mood of the genre. Put the chapter title alone on the
first line, then the chapter text. Write in the same language as the title.`

const nextEpisodeInstruction = `You are a creative novelist.
From the given genre, title, world, synopsis, characters and previous chapter, write the next
chapter in 500 to 1000 characters, matching the mood of the genre and following the author's
direction when one is given. Put the chapter title alone on the first line, then the chapter
text. Write in the same language as the title.`

const meetingNotesInstruction = `You analyse discussion transcripts about a novel.
Write plain text only, without any markdown. Follow the order of the speakers and summarise in
three sections:
1. Main points discussed, in speaking order.
2. Key ideas raised by the participants.
3. Ideas suggested by AI: improvements, alternatives and perspectives the participants missed.`

const topicInstruction = `You help readers run a discussion about a novel.
Using only the novel passages provided, recommend several discussion topics related to the
participant's remark. Give each topic one line with a short reason.`

const factCheckInstruction = `You check statements against a novel.
Using only the novel passages provided, decide whether the claim is true, false or not
supported, and quote the evidence. Answer briefly.`

type promptSection struct {
	label string
	value string
}

func buildPrompt(heading string, sections ...promptSection) string {
	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "## %s: %s\n", s.label, s.value)
	}
	fmt.Fprintf(&b, "\n**%s**\n", heading)
	return b.String()
}

func worldviewPrompt(n *model.Novel) string {
	return buildPrompt("World",
		promptSection{"Genre", n.Genre()},
		promptSection{"Title", n.Title},
	)
}

func synopsisPrompt(n *model.Novel) string {
	return buildPrompt("Synopsis",
		promptSection{"Genre", n.Genre()},
		promptSection{"Title", n.Title},
		promptSection{"World", n.Worldview},
	)
}

func charactersPrompt(n *model.Novel) string {
	return buildPrompt("New characters",
		promptSection{"Genre", n.Genre()},
		promptSection{"Title", n.Title},
		promptSection{"World", n.Worldview},
		promptSection{"Synopsis", n.Synopsis},
		promptSection{"Existing characters", formatCharacters(n.Characters)},
	)
}

func firstEpisodePrompt(n *model.Novel) string {
	return buildPrompt("Chapter 1",
		promptSection{"Genre", n.Genre()},
		promptSection{"Title", n.Title},
		promptSection{"World", n.Worldview},
		promptSection{"Synopsis", n.Synopsis},
		promptSection{"Characters", formatCharacters(n.Characters)},
	)
}

func nextEpisodePrompt(n *model.Novel, last *model.Episode, direction string) string {
	sections := []promptSection{
		{"Genre", n.Genre()},
		{"Title", n.Title},
		{"World", n.Worldview},
		{"Synopsis", n.Synopsis},
		{"Characters", formatCharacters(n.Characters)},
		{"Previous chapter", last.Title + "\n" + last.Content},
	}
	if direction != "" {
		sections = append(sections, promptSection{"Author's direction", direction})
	}
	return buildPrompt(fmt.Sprintf("Chapter %d", last.Number+1), sections...)
}

func passagesPrompt(label, query string, passages []*model.Passage) string {
	var b strings.Builder
	b.WriteString("## Novel passages\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, p.Text)
	}
	fmt.Fprintf(&b, "## %s: %s\n", label, query)
	return b.String()
}

func formatCharacters(chars []model.Character) string {
	if len(chars) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, c := range chars {
		fmt.Fprintf(&b, "- %s (%s, %s, %s, %s): %s\n", c.Name, c.Role, c.Age, c.Sex, c.Job, c.Profile)
	}
	return strings.TrimRight(b.String(), "\n")
}

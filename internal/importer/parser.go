package importer

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// ParsedCard is one Q/A entry read from a markdown source file. Context is
// optional supporting material that travels with the answer.
type ParsedCard struct {
	Question string
	Answer   string
	Context  string
}

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
)

type parseState int

const (
	seeking parseState = iota
	readingQuestion
	readingAnswer
	readingContext
)

// ParseFile reads a markdown file and extracts all cards.
func ParseFile(path string) ([]ParsedCard, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads Q:/A:/C: blocks from r. A new Q: or a "---" separator starts a
// new card; lines between prefixes continue the current block. Cards without
// a question are dropped.
func Parse(r io.Reader) ([]ParsedCard, error) {
	scanner := bufio.NewScanner(r)
	var cards []ParsedCard
	var current ParsedCard
	var block []string
	state := seeking

	closeBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch state {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.Answer = content
		case readingContext:
			current.Context = content
		}
		block = nil
	}

	finishCard := func() {
		closeBlock()
		if current.Question != "" {
			cards = append(cards, current)
		}
		current = ParsedCard{}
		state = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishCard()
			continue
		}

		prefix := ""
		switch {
		case strings.HasPrefix(line, questionPrefix):
			prefix = questionPrefix
		case strings.HasPrefix(line, answerPrefix):
			prefix = answerPrefix
		case strings.HasPrefix(line, contextPrefix):
			prefix = contextPrefix
		}

		if prefix == "" {
			if state != seeking {
				block = append(block, line)
			}
			continue
		}

		closeBlock()
		if prefix == questionPrefix && state != seeking {
			// A new question always starts a new card.
			finishCard()
		}

		switch prefix {
		case questionPrefix:
			state = readingQuestion
		case answerPrefix:
			state = readingAnswer
		case contextPrefix:
			state = readingContext
		}

		content := strings.TrimPrefix(line, prefix)
		content = strings.TrimPrefix(content, " ")
		block = append(block, content)
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

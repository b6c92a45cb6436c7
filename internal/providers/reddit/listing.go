package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/redditbot/pkg/models"
)

// Reddit "thing" kinds that matter to the bot.
const (
	kindComment = "t1"
	kindLink    = "t3"
	kindMore    = "more"
	kindListing = "Listing"
)

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type linkData struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	NumComments int    `json:"num_comments"`
}

type commentData struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Author  string          `json:"author"`
	Body    string          `json:"body"`
	Replies json.RawMessage `json:"replies"`
}

type moreData struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Count    int      `json:"count"`
	Children []string `json:"children"`
}

type commentResponse struct {
	JSON struct {
		Errors [][]string `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

func threadsFromListing(l listing) ([]models.Thread, error) {
	threads := make([]models.Thread, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != kindLink {
			continue
		}
		var d linkData
		if err := json.Unmarshal(child.Data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode link: %w", err)
		}
		threads = append(threads, models.Thread{
			ID:          d.ID,
			Name:        fullname(kindLink, d.ID, d.Name),
			Title:       d.Title,
			Author:      d.Author,
			NumComments: d.NumComments,
		})
	}
	return threads, nil
}

// forestFromListing converts a comment listing into the typed reply forest.
// Kinds other than comments and "more" stubs are dropped.
func forestFromListing(l listing) (models.ReplyForest, error) {
	forest := make(models.ReplyForest, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		node, err := nodeFromThing(child)
		if err != nil {
			return nil, err
		}
		if node != nil {
			forest = append(forest, node)
		}
	}
	return forest, nil
}

func nodeFromThing(t thing) (*models.ReplyNode, error) {
	switch t.Kind {
	case kindComment:
		var d commentData
		if err := json.Unmarshal(t.Data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode comment: %w", err)
		}
		children, err := decodeReplies(d.Replies)
		if err != nil {
			return nil, fmt.Errorf("comment %s: %w", d.ID, err)
		}
		return &models.ReplyNode{
			Kind:     models.KindComment,
			ID:       fullname(kindComment, d.ID, d.Name),
			Author:   d.Author,
			Body:     d.Body,
			Children: children,
		}, nil
	case kindMore:
		var d moreData
		if err := json.Unmarshal(t.Data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode more stub: %w", err)
		}
		return &models.ReplyNode{
			Kind:      models.KindMore,
			ID:        fullname(kindComment, d.ID, d.Name),
			MoreIDs:   d.Children,
			MoreCount: d.Count,
		}, nil
	default:
		return nil, nil
	}
}

// decodeReplies handles the "replies" field, which Reddit sends as an empty
// string for leaves and as a nested listing otherwise.
func decodeReplies(raw json.RawMessage) ([]*models.ReplyNode, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte(`""`)) || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("unexpected replies payload %.32q", string(trimmed))
	}

	var l listing
	if err := json.Unmarshal(trimmed, &l); err != nil {
		return nil, fmt.Errorf("failed to decode replies: %w", err)
	}
	forest, err := forestFromListing(l)
	if err != nil {
		return nil, err
	}
	return forest, nil
}

func fullname(kind, id, name string) string {
	if name != "" {
		return name
	}
	return kind + "_" + id
}

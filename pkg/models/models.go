package models

// Thread is a single discussion thread (article) listed on a board.
type Thread struct {
	ID          string `json:"id"`   // base36 article id, used to request its comments
	Name        string `json:"name"` // fullname, e.g. t3_abc123
	Title       string `json:"title"`
	Author      string `json:"author"`
	NumComments int    `json:"num_comments"`
}

// NodeKind distinguishes concrete comments from truncated-branch placeholders.
type NodeKind int

const (
	// KindComment is a fully loaded comment with an author and a body.
	KindComment NodeKind = iota
	// KindMore marks replies that exist remotely but were not expanded.
	KindMore
)

func (k NodeKind) String() string {
	switch k {
	case KindComment:
		return "comment"
	case KindMore:
		return "more"
	default:
		return "unknown"
	}
}

// ReplyNode is one node of a thread's reply tree.
type ReplyNode struct {
	Kind     NodeKind     `json:"kind"`
	ID       string       `json:"id"` // reply target, e.g. t1_abc123
	Author   string       `json:"author,omitempty"`
	Body     string       `json:"body,omitempty"`
	Children []*ReplyNode `json:"children,omitempty"`

	// Only set for KindMore
	MoreIDs   []string `json:"more_ids,omitempty"`
	MoreCount int      `json:"more_count,omitempty"`
}

// IsMore reports whether the node is a truncated-branch placeholder.
func (n *ReplyNode) IsMore() bool {
	return n != nil && n.Kind == KindMore
}

// ReplyForest is the ordered top level of a thread's comment section.
type ReplyForest []*ReplyNode

// Comment builds a comment node. Handy for tests and fixtures.
func Comment(id, author, body string, children ...*ReplyNode) *ReplyNode {
	return &ReplyNode{
		Kind:     KindComment,
		ID:       id,
		Author:   author,
		Body:     body,
		Children: children,
	}
}

// More builds a truncated-branch placeholder.
func More(id string, childIDs ...string) *ReplyNode {
	return &ReplyNode{
		Kind:      KindMore,
		ID:        id,
		MoreIDs:   childIDs,
		MoreCount: len(childIDs),
	}
}

// CountComments returns the number of concrete comments in the forest.
func (f ReplyForest) CountComments() int {
	total := 0
	var walk func(nodes []*ReplyNode)
	walk = func(nodes []*ReplyNode) {
		for _, n := range nodes {
			if n == nil || n.IsMore() {
				continue
			}
			total++
			walk(n.Children)
		}
	}
	walk(f)
	return total
}

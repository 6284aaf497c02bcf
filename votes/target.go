package votes

// TargetKind names the aggregate family a vote lands on.
type TargetKind string

const (
	TargetQuestion TargetKind = "question"
	TargetAnswer   TargetKind = "answer"
	TargetReply    TargetKind = "reply"
)

// TargetRef addresses a votable target. Questions and answers are
// addressed by row ID; a reply is addressed by the composite key
// (answer ID, reply ID) because it only exists inside its parent.
type TargetRef struct {
	Kind    TargetKind
	ID      uint
	ReplyID string
}

// QuestionRef addresses a question.
func QuestionRef(id uint) TargetRef {
	return TargetRef{Kind: TargetQuestion, ID: id}
}

// AnswerRef addresses an answer.
func AnswerRef(id uint) TargetRef {
	return TargetRef{Kind: TargetAnswer, ID: id}
}

// ReplyRef addresses a reply embedded in an answer.
func ReplyRef(answerID uint, replyID string) TargetRef {
	return TargetRef{Kind: TargetReply, ID: answerID, ReplyID: replyID}
}

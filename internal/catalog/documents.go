package catalog

import (
	"knowledgeflow/internal/docstore"
	"knowledgeflow/internal/domain"
)

type lessonFields struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Order    int    `json:"order"`
	VideoURL string `json:"videoUrl,omitempty"`
}

type quizFields struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
}

func courseDocument(course domain.Course) docstore.Document {
	doc := docstore.Document{
		"title":           docstore.MustEncode(course.Title),
		"description":     docstore.MustEncode(course.Description),
		"category":        docstore.MustEncode(course.Category),
		"thumbnailUrl":    docstore.MustEncode(course.ThumbnailURL),
		"creatorUsername": docstore.MustEncode(course.CreatorUsername),
		"createdAt":       docstore.MustEncode(course.CreatedAt),
		"students":        docstore.MustEncode(course.Students),
	}
	if course.CertificateLink != "" {
		doc["certificateLink"] = docstore.MustEncode(course.CertificateLink)
	}
	return doc
}

// courseWrites returns the batch that materializes a course and its embedded content.
func courseWrites(course domain.Course) []docstore.Write {
	writes := []docstore.Write{{
		Kind:   docstore.WriteSet,
		Path:   docstore.CoursePath(course.ID),
		Fields: courseDocument(course),
	}}
	if len(course.Lessons) > 0 {
		lessons := make(docstore.Document, len(course.Lessons))
		for _, l := range course.Lessons {
			lessons[l.ID] = docstore.MustEncode(lessonFields{Title: l.Title, Content: l.Content, Order: l.Order, VideoURL: l.VideoURL})
		}
		writes = append(writes, docstore.Write{Kind: docstore.WriteSet, Path: docstore.LessonsPath(course.ID), Fields: lessons})
	}
	if len(course.Quizzes) > 0 {
		quizzes := make(docstore.Document, len(course.Quizzes))
		for _, q := range course.Quizzes {
			quizzes[q.ID] = docstore.MustEncode(quizFields{Question: q.Question, Options: q.Options, CorrectOption: q.CorrectOption})
		}
		writes = append(writes, docstore.Write{Kind: docstore.WriteSet, Path: docstore.QuizzesPath(course.ID), Fields: quizzes})
	}
	return writes
}

func summaryFromDoc(id string, doc docstore.Document) domain.CourseSummary {
	return domain.CourseSummary{
		ID:              id,
		Title:           doc.String("title"),
		Description:     doc.String("description"),
		Category:        doc.String("category"),
		ThumbnailURL:    doc.String("thumbnailUrl"),
		CreatorUsername: doc.String("creatorUsername"),
	}
}

func courseFromDoc(id string, doc docstore.Document) domain.Course {
	return domain.Course{
		CourseSummary:   summaryFromDoc(id, doc),
		CreatedAt:       doc.Int("createdAt"),
		Students:        doc.Int("students"),
		CertificateLink: doc.String("certificateLink"),
		Lessons:         []domain.Lesson{},
		Quizzes:         []domain.Quiz{},
	}
}

package app

import (
	"knowledgeflow/internal/docstore"
	"knowledgeflow/internal/domain"
)

func progressDocument(p domain.ProgressRecord) (docstore.Document, error) {
	doc := make(docstore.Document, 7)
	values := map[string]any{
		"completedLessons":    dedupe(p.CompletedLessons),
		"quizAnswers":         nonNil(p.QuizAnswers),
		"quizSubmitted":       nonNil(p.QuizSubmitted),
		"quizResults":         nonNil(p.QuizResults),
		"certificateUnlocked": p.CertificateUnlocked,
		"overallProgress":     p.OverallProgress,
		"lastUpdated":         p.LastUpdated,
	}
	for field, v := range values {
		raw, err := docstore.Encode(v)
		if err != nil {
			return nil, err
		}
		doc[field] = raw
	}
	return doc, nil
}

func progressFromDocument(doc docstore.Document) (domain.ProgressRecord, error) {
	p := domain.NewProgressRecord()
	targets := map[string]any{
		"completedLessons":    &p.CompletedLessons,
		"quizAnswers":         &p.QuizAnswers,
		"quizSubmitted":       &p.QuizSubmitted,
		"quizResults":         &p.QuizResults,
		"certificateUnlocked": &p.CertificateUnlocked,
		"overallProgress":     &p.OverallProgress,
		"lastUpdated":         &p.LastUpdated,
	}
	for field, dst := range targets {
		if _, err := doc.Decode(field, dst); err != nil {
			return domain.ProgressRecord{}, err
		}
	}
	if p.CompletedLessons == nil {
		p.CompletedLessons = []string{}
	}
	p.QuizAnswers = nonNil(p.QuizAnswers)
	p.QuizSubmitted = nonNil(p.QuizSubmitted)
	p.QuizResults = nonNil(p.QuizResults)
	return p, nil
}

// updateFields encodes only the fields present in the update.
func updateFields(u domain.PartialProgressUpdate) (docstore.Document, error) {
	values := make(map[string]any, 6)
	if u.CompletedLessons != nil {
		values["completedLessons"] = dedupe(u.CompletedLessons)
	}
	if u.QuizAnswers != nil {
		values["quizAnswers"] = u.QuizAnswers
	}
	if u.QuizSubmitted != nil {
		values["quizSubmitted"] = u.QuizSubmitted
	}
	if u.QuizResults != nil {
		values["quizResults"] = u.QuizResults
	}
	if u.CertificateUnlocked != nil {
		values["certificateUnlocked"] = *u.CertificateUnlocked
	}
	if u.OverallProgress != nil {
		values["overallProgress"] = *u.OverallProgress
	}
	doc := make(docstore.Document, len(values)+1)
	for field, v := range values {
		raw, err := docstore.Encode(v)
		if err != nil {
			return nil, err
		}
		doc[field] = raw
	}
	return doc, nil
}

// dedupe keeps the first occurrence of each lesson id; completed lessons are a set.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

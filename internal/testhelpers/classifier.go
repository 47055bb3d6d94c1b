// Package testhelpers provides fakes shared by package tests.
package testhelpers

import (
	"context"
	"errors"
	"sync"

	"github.com/pbaille/reportcard/internal/classifier"
)

// ErrClassifierDown is the error returned by a FakeClassifier set to fail.
var ErrClassifierDown = errors.New("classifier unavailable")

// FakeClassifier is a scripted classifier that counts its calls.
//
// Friends maps a comment to the names returned for it; unknown comments
// return no names. Activities and Training map labels to the categories
// suggested for them; labels without an entry are left out of the answer.
type FakeClassifier struct {
	mu sync.Mutex

	Friends    map[string][]string
	Activities map[string][]string
	Training   map[string]string

	FailFriends    bool
	FailCategorize bool

	FriendCalls     int
	CategorizeCalls int
	Requests        []classifier.CategorizeRequest
}

// NewFakeClassifier returns an empty fake.
func NewFakeClassifier() *FakeClassifier {
	return &FakeClassifier{
		Friends:    make(map[string][]string),
		Activities: make(map[string][]string),
		Training:   make(map[string]string),
	}
}

func (f *FakeClassifier) ExtractFriends(_ context.Context, text string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FriendCalls++
	if f.FailFriends {
		return nil, ErrClassifierDown
	}
	return append([]string(nil), f.Friends[text]...), nil
}

func (f *FakeClassifier) Categorize(_ context.Context, req classifier.CategorizeRequest) (*classifier.Categorization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CategorizeCalls++
	f.Requests = append(f.Requests, req)
	if f.FailCategorize {
		return nil, ErrClassifierDown
	}

	out := &classifier.Categorization{}
	for _, label := range req.Activities {
		if cats, ok := f.Activities[label]; ok {
			out.Activities = append(out.Activities, classifier.ActivityLabel{Label: label, Categories: cats})
		}
	}
	for _, label := range req.Training {
		if cat, ok := f.Training[label]; ok {
			out.Training = append(out.Training, classifier.TrainingLabel{Label: label, Category: cat})
		}
	}
	return out, nil
}

// Calls returns the total number of classifier calls.
func (f *FakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FriendCalls + f.CategorizeCalls
}

// Reset zeroes the call counters.
func (f *FakeClassifier) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FriendCalls, f.CategorizeCalls, f.Requests = 0, 0, nil
}

var _ classifier.Classifier = (*FakeClassifier)(nil)

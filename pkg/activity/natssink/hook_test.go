package natssink_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/goliatone/go-settings/pkg/activity/natssink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return p.err
}

func TestHookPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	hook := natssink.Hook{Publisher: pub, SubjectPrefix: "lms.settings."}

	event := activity.BuildSettingsResetEvent(activity.SettingsEventInput{
		OptionName: "sfwd_cpt_options",
		Location:   "sfwd-quiz",
		DeleteAll:  true,
	})
	require.NoError(t, hook.Notify(context.Background(), event))
	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "lms.settings.settings.reset", pub.subjects[0])

	var msg natssink.Message
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	assert.Equal(t, activity.VerbSettingsReset, msg.Verb)
	assert.Equal(t, "sfwd_cpt_options/sfwd-quiz", msg.ObjectID)
	assert.Equal(t, true, msg.Metadata["delete_all"])
	assert.False(t, msg.OccurredAt.IsZero())
}

func TestHookDefaultsSubjectAndWrapsErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	hook := natssink.Hook{Publisher: pub}
	event := activity.Event{Verb: "settings.updated", ObjectType: "settings", ObjectID: "x"}

	assert.Equal(t, "settings.activity.settings.updated", hook.Subject(event))
	err := hook.Notify(context.Background(), event)
	require.Error(t, err)
	assert.ErrorIs(t, err, pub.err)
}

func TestHookSkipsInvalidAndCancelled(t *testing.T) {
	pub := &fakePublisher{}
	hook := natssink.Hook{Publisher: pub}
	require.NoError(t, hook.Notify(context.Background(), activity.Event{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := hook.Notify(ctx, activity.Event{Verb: "v", ObjectType: "t", ObjectID: "1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.subjects)
}

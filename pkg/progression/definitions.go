package progression

import settings "github.com/goliatone/go-settings"

// LocationName is the metabox location the definitions are meant for.
const LocationName = "topic_display_content"

// Definitions returns the fields of the display and content metabox.
func Definitions() []settings.Definition {
	return []settings.Definition{
		{Key: KeyMaterialsEnabled, Name: "Topic Materials", Type: settings.FieldCheckbox, Default: "",
			HelpText: "List and display support materials for the topic."},
		{Key: KeyMaterials, Name: "Materials", Type: settings.FieldHTML, Default: "",
			ShowIf: `checked(topic_materials_enabled)`},

		{Key: KeyVideoEnabled, Name: "Video Progression", Type: settings.FieldCheckbox, Default: "",
			HelpText: "Require the video to be watched before the topic can be completed."},
		{Key: KeyVideoURL, Name: "Video URL", Type: settings.FieldTextarea, Default: "", Rows: 2,
			ShowIf: `checked(lesson_video_enabled)`},
		{Key: KeyVideoShown, Name: "Display Timing", Type: settings.FieldRadio, Default: "AFTER",
			Choices: []settings.Choice{{Value: "BEFORE", Label: "Before completed sub-steps"}, {Value: "AFTER", Label: "After completing sub-steps"}},
			ShowIf:  `checked(lesson_video_enabled)`},
		{Key: KeyVideoAutoStart, Name: "Autostart", Type: settings.FieldCheckbox, Default: "", ShowIf: `checked(lesson_video_enabled)`},
		{Key: KeyVideoShowControls, Name: "Video Controls Display", Type: settings.FieldCheckbox, Default: "", ShowIf: `checked(lesson_video_enabled)`},
		{Key: KeyVideoFocusPause, Name: "Video Pause on Window Unfocused", Type: settings.FieldCheckbox, Default: "", ShowIf: `checked(lesson_video_enabled)`},
		{Key: KeyVideoTrackTime, Name: "Video Resume", Type: settings.FieldCheckbox, Default: "", ShowIf: `checked(lesson_video_enabled)`},
		{Key: KeyVideoAutoComplete, Name: "Auto Complete", Type: settings.FieldCheckbox, Default: "", ShowIf: `checked(lesson_video_enabled)`},
		{Key: KeyVideoAutoCompleteDelay, Name: "Completion Delay", Type: settings.FieldNumber, Default: "0", Min: "0",
			ShowIf: `checked(lesson_video_auto_complete)`},
		{Key: KeyVideoShowCompleteButton, Name: "Mark Complete Button", Type: settings.FieldCheckbox, Default: "",
			ShowIf: `checked(lesson_video_enabled)`},
		{Key: KeyVideoHideCompleteButton, Type: settings.FieldHidden, Default: ""},

		{Key: KeyAssignmentUpload, Name: "Assignment Uploads", Type: settings.FieldCheckbox, Default: ""},
		{Key: KeyUploadExtensions, Name: "File Extensions", Type: settings.FieldText, Default: "",
			Placeholder: "pdf, xls, zip", ShowIf: `checked(lesson_assignment_upload)`},
		{Key: KeyUploadSize, Name: "File Size Limit", Type: settings.FieldText, Default: "",
			Placeholder: "2M", ShowIf: `checked(lesson_assignment_upload)`},
		{Key: KeyPointsEnabled, Name: "Points", Type: settings.FieldCheckbox, Default: "", ShowIf: `checked(lesson_assignment_upload)`},
		{Key: KeyPointsAmount, Name: "Points Amount", Type: settings.FieldNumber, Default: "0", Min: "0",
			ShowIf: `checked(lesson_assignment_points_enabled)`},
		{Key: KeyUploadCount, Name: "Limit Number of Uploaded Files", Type: settings.FieldNumber, Default: "1", Min: "1",
			ShowIf: `checked(lesson_assignment_upload)`, Validate: `assignment_upload_limit_count == "" || int(assignment_upload_limit_count) >= 1`},
		{Key: KeyAssignmentDeletion, Name: "Allow File Deletion", Type: settings.FieldCheckbox, Default: "", ShowIf: `checked(lesson_assignment_upload)`},
		{Key: KeyAutoApproveAssignment, Name: "Grading Type", Type: settings.FieldRadio, Default: on,
			Choices: []settings.Choice{{Value: on, Label: "Auto-approve"}, {Value: "", Label: "Manually grade"}},
			ShowIf:  `checked(lesson_assignment_upload)`},

		{Key: KeyTimerEnabled, Name: "Forced Timer", Type: settings.FieldCheckbox, Default: ""},
		{Key: KeyTimer, Name: "Timer Duration", Type: settings.FieldText, Default: "", Placeholder: "seconds",
			ShowIf: `checked(forced_lesson_time_enabled)`},
	}
}

// Location returns the metabox location built from Definitions.
func Location() settings.Location {
	return settings.Location{
		Name:     LocationName,
		Title:    "Display and Content Options",
		Kind:     settings.LocationMetabox,
		Defaults: Definitions(),
	}
}

package project

// Step is the next workflow action for a project.
type Step string

const (
	StepUploadFiles     Step = "upload_files"
	StepGenerateOutline Step = "generate_outline"
	StepGenerateDraft   Step = "generate_draft"
	StepRefineBlog      Step = "refine_blog"
	StepGenerateSocial  Step = "generate_social"
	StepCompleted       Step = "completed"
)

// NextStep derives the next workflow action from the set of completed
// milestone types. The rule is presence-based and order-independent: it scans
// from the most advanced milestone downward, so the same set always yields
// the same step no matter the order milestones were saved in, and gaps in the
// sequence are tolerated.
func NextStep(completed map[MilestoneType]bool) Step {
	switch {
	case completed[MilestoneSocialGenerated]:
		return StepCompleted
	case completed[MilestoneBlogRefined]:
		return StepGenerateSocial
	case completed[MilestoneDraftCompleted]:
		return StepRefineBlog
	case completed[MilestoneOutlineGenerated]:
		return StepGenerateDraft
	case completed[MilestoneFilesUploaded]:
		return StepGenerateOutline
	default:
		return StepUploadFiles
	}
}

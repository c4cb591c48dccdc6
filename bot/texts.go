package bot

// Recognized chat commands.
const (
	cmdGoals  = "/goals"
	cmdCreate = "/create"
	cmdCancel = "/cancel"
)

// User-facing reply texts.
const (
	textGreeting         = "Hello"
	textVerificationCode = "Your verification code: %s"
	textGoalsHeader      = "Your goals:\n"
	textNoGoals          = "You have no goals"
	textSelectCategory   = "Select category to create goal:\n"
	textNoCategories     = "You have no categories"
	textCategoryNotFound = "Category not found"
	textCreateForbidden  = "You cannot create a goal in the selected category"
	textSetTitle         = "Set goal title"
	textGoalCreated      = "New goal created"
	textCanceled         = "Canceled"
	textCommandNotFound  = "Command not found"
	textTryLater         = "Something went wrong, try again later"
)

package notify

// Default templates, one per notification the engine sends.
var (
	CreateOTP = Template{
		Subject: "Your Access Code for Registration",
		Body:    "Your one-time security code is: {{one_time_password}}",
	}
	CreateComplete = Template{
		Subject: "Your Registration is Complete",
		Body:    "Dear {{name}}.\nThank you for joining us, your account is now active and ready to use.",
	}
	LoginOTP = Template{
		Subject: "Your Access Code for SignIn",
		Body:    "Your one-time security code is: {{one_time_password}}",
	}
	LoginComplete = Template{
		Subject: "Login Notification",
		Body:    "Dear {{name}}\nThank you for logging in to our system.",
	}
	ChangeEmailOTP = Template{
		Subject: "Your Change Email Code",
		Body:    "Your one-time security code is: {{one_time_password}}",
	}
	ChangeEmailComplete = Template{
		Subject: "Email Update Notice",
		Body:    "Dear {{name}}. Email update completed.",
	}
	DeletionOTP = Template{
		Subject: "Access Code for Account Deactivation",
		Body:    "Your one-time security code is: {{one_time_password}}",
	}
	DeletionComplete = Template{
		Subject: "Account Deletion Confirmation",
		Body:    "Your account has been deleted. Thank you for being a part of our community.",
	}
	ResetPasswordToken = Template{
		Subject: "Reset Password URL",
		Body:    "Dear {{name}},\nUse the following token to reset your password:\n{{jwt_token}}",
	}
	ResetPasswordComplete = Template{
		Subject: "Password Update Notice",
		Body:    "Dear {{name}}. Password update completed.",
	}
)

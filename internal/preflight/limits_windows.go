package preflight

func checkFileDescriptors() Check {
	return Check{
		Name:    "file_descriptors",
		Passed:  true,
		Warning: true,
		Message: "not applicable on windows",
	}
}

package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260309-141200",
		Description: "Track social publisher errors on scheduled posts",
		Up: []string{
			`ALTER TABLE scheduled_posts ADD COLUMN publish_error TEXT`,
		},
	})
}

package application

type CreatePostInput struct {
	Content  string
	MediaIDs []string
}

type UpdatePostInput struct {
	Content string
}

type ListPostsInput struct {
	Page  int
	Limit int
}

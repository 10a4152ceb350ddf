package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophsocial/internal/filex"
	"github.com/dmitrijs2005/gophsocial/internal/netx"
)

// Test seams for image handling.
var (
	readImage   = filex.ReadImage
	uploadImage = netx.UploadToPresignedURL
)

func (a *App) usage(text string) error {
	fmt.Fprintln(a.out, "Usage:", text)
	return errUsage
}

func (a *App) Follow(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usage("follow <user-id>")
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	state, err := a.api.ToggleFollow(ctx, args[0])
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "User", args[0], state)
	return nil
}

// Post creates a post. With an image path the file is read first and
// uploaded to the returned URL once the post exists.
func (a *App) Post(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return a.usage("post [image-path]")
	}
	var (
		image       []byte
		contentType string
	)
	if len(args) == 1 {
		var err error
		if image, contentType, err = readImage(args[0]); err != nil {
			return a.report(err)
		}
	}

	caption, err := GetSimpleText(a.in, "Enter caption", a.out)
	if err != nil {
		return a.report(err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	p, uploadURL, err := a.api.CreatePost(ctx, caption, image != nil)
	if err != nil {
		return a.report(err)
	}
	if image != nil {
		if err := uploadImage(ctx, uploadURL, contentType, image); err != nil {
			return a.report(fmt.Errorf("post %s created but image upload failed: %w", p.ID, err))
		}
	}
	fmt.Fprintln(a.out, "Posted", p.ID)
	return nil
}

func (a *App) Like(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usage("like <post-id>")
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	liked, err := a.api.ToggleLike(ctx, args[0])
	if err != nil {
		return a.report(err)
	}
	if liked {
		fmt.Fprintln(a.out, "Liked", args[0])
	} else {
		fmt.Fprintln(a.out, "Unliked", args[0])
	}
	return nil
}

// Comment adds a comment; text comes from the remaining args or a prompt.
func (a *App) Comment(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return a.usage("comment <post-id> [text]")
	}
	text := strings.Join(args[1:], " ")
	if text == "" {
		var err error
		if text, err = GetSimpleText(a.in, "Enter comment", a.out); err != nil {
			return a.report(err)
		}
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	p, err := a.api.AddComment(ctx, args[0], text)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Commented on %s (%d comments)\n", p.ID, len(p.Comments))
	return nil
}

func (a *App) Feed(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	posts, err := a.api.Feed(ctx)
	if err != nil {
		return a.report(err)
	}
	if len(posts) == 0 {
		fmt.Fprintln(a.out, "Nothing yet. Follow someone!")
		return nil
	}
	for _, p := range posts {
		fmt.Fprintf(a.out, "[%s] by %s at %s\n  %s\n  likes: %d  comments: %d\n",
			p.ID, p.OwnerID, p.CreatedAt.Local().Format("2006-01-02 15:04"), p.Caption, len(p.Likes), len(p.Comments))
		for _, c := range p.Comments {
			fmt.Fprintf(a.out, "    %s: %s\n", c.UserID, c.Text)
		}
	}
	return nil
}

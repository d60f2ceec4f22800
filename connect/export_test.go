package connect

func OptionsOf(c *Client) Options { return c.opts }

func DialerOf(c *Client) Dialer { return c.dialer }
